package security

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCodeLength is the length of generated access codes.
	DefaultCodeLength = 6
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrEmptyCode = errors.New("access code is empty")

// AccessCodeHasher hashes and verifies private-resource access codes.
type AccessCodeHasher struct {
	cost int
}

func NewAccessCodeHasher(cost int) *AccessCodeHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AccessCodeHasher{cost: cost}
}

// Hash returns the bcrypt hash of code.
func (h *AccessCodeHasher) Hash(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", ErrEmptyCode
	}
	b, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether code matches hash. The comparison is constant-time.
func (h *AccessCodeHasher) Compare(hash, code string) bool {
	if hash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// GenerateCode returns a random uppercase alphanumeric code of length n.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		n = DefaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}
