package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/repository"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
	"smartqr-backend/internal/infra/security"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// ResourceKind names a resource type that can be protected by an access code.
type ResourceKind string

const (
	ResourceEvent     ResourceKind = "event"
	ResourceCandidate ResourceKind = "candidate"
)

// HashFieldAccessCode is the only secret field resources expose today.
const HashFieldAccessCode = "accessCode"

// GuardConfig declares how a route is protected: which resource is looked up
// from which path parameters, and which field holds the secret hash.
type GuardConfig struct {
	Kind       ResourceKind
	HashField  string
	LookupKeys []string
}

type CodeHasher interface {
	Hash(code string) (string, error)
	Compare(hash, code string) bool
}

type AccessUseCase interface {
	// Validate rejects configurations the guard cannot serve.
	Validate(cfg GuardConfig) error
	// Check authorizes secret against the resource identified by params.
	Check(ctx context.Context, cfg GuardConfig, params map[string]string, secret string) error
	// Open runs Check and returns the public view of the released resource.
	Open(ctx context.Context, cfg GuardConfig, params map[string]string, secret string) (*ProtectedView, error)
	// RotateAccessCode replaces the access code of a resource owned by userID.
	// An empty code is replaced by a generated one. The plaintext is returned once.
	RotateAccessCode(ctx context.Context, userID, url, kind, code string) (*RotatedCode, error)
}

type RotatedCode struct {
	Kind ResourceKind
	URL  string
	Code string
}

// ProtectedView is what a caller with the right access code gets to see.
type ProtectedView struct {
	Kind        ResourceKind
	ID          string
	Slug        string
	Category    string
	Title       string
	Description string
	Firstname   string
	Lastname    string
	ImageKey    *string
}

// securedRecord is what a resource lookup yields to the guard.
type securedRecord struct {
	ownerID string
	fields  map[string]*string
	view    ProtectedView
}

type resourceAccessor struct {
	keys   []string
	lookup func(ctx context.Context, params map[string]string) (*securedRecord, error)
}

type accessUC struct {
	events     repository.EventRepository
	candidates repository.CandidateRepository
	codes      repository.AccessCodeRepository
	hasher     CodeHasher
	resources  map[ResourceKind]resourceAccessor
	log        *zerolog.Logger
}

func NewAccessUseCase(
	events repository.EventRepository,
	candidates repository.CandidateRepository,
	codes repository.AccessCodeRepository,
	hasher CodeHasher,
	logger *zerolog.Logger,
) *accessUC {
	u := &accessUC{events: events, candidates: candidates, codes: codes, hasher: hasher, log: logger}
	u.resources = map[ResourceKind]resourceAccessor{
		ResourceEvent:     {keys: []string{"category", "slug"}, lookup: u.lookupEvent},
		ResourceCandidate: {keys: []string{"slug"}, lookup: u.lookupCandidate},
	}
	return u
}

func (u *accessUC) lookupEvent(ctx context.Context, params map[string]string) (*securedRecord, error) {
	ev, err := u.events.FindByCategoryAndSlug(ctx, repository.NoTX, params["category"], params["slug"])
	if err != nil {
		return nil, err
	}
	return &securedRecord{
		ownerID: ev.UserID,
		fields:  map[string]*string{HashFieldAccessCode: ev.AccessCode},
		view: ProtectedView{
			Kind: ResourceEvent, ID: ev.ID, Slug: ev.Slug, Category: ev.Category,
			Title: ev.Title, Description: ev.Description,
		},
	}, nil
}

func (u *accessUC) lookupCandidate(ctx context.Context, params map[string]string) (*securedRecord, error) {
	c, err := u.candidates.FindBySlug(ctx, repository.NoTX, params["slug"])
	if err != nil {
		return nil, err
	}
	return &securedRecord{
		ownerID: c.UserID,
		fields:  map[string]*string{HashFieldAccessCode: c.AccessCode},
		view: ProtectedView{
			Kind: ResourceCandidate, ID: c.ID, Slug: c.Slug, Description: c.Description,
			Firstname: c.Firstname, Lastname: c.Lastname, ImageKey: c.ImageKey,
		},
	}, nil
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func (u *accessUC) Validate(cfg GuardConfig) error {
	res, ok := u.resources[cfg.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown resource kind %q", domain.ErrInvalidArgument, cfg.Kind)
	}
	if cfg.HashField != HashFieldAccessCode {
		return fmt.Errorf("%w: %s has no secret field %q", domain.ErrInvalidArgument, cfg.Kind, cfg.HashField)
	}
	if !sameKeys(cfg.LookupKeys, res.keys) {
		return fmt.Errorf("%w: %s is looked up by %v, got %v", domain.ErrInvalidArgument, cfg.Kind, res.keys, cfg.LookupKeys)
	}
	return nil
}

func (u *accessUC) Check(ctx context.Context, cfg GuardConfig, params map[string]string, secret string) error {
	_, err := u.open(ctx, cfg, params, secret)
	return err
}

func (u *accessUC) Open(ctx context.Context, cfg GuardConfig, params map[string]string, secret string) (*ProtectedView, error) {
	rec, err := u.open(ctx, cfg, params, secret)
	if err != nil {
		return nil, err
	}
	return &rec.view, nil
}

func (u *accessUC) open(ctx context.Context, cfg GuardConfig, params map[string]string, secret string) (rec *securedRecord, err error) {
	result := "granted"
	defer func() {
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			result = "not_found"
		case errors.Is(err, domain.ErrForbidden):
			result = "forbidden"
		case errors.Is(err, domain.ErrUnauthorized):
			result = "denied"
		default:
			result = "error"
		}
		metrics.IncAccessCheck(string(cfg.Kind), result)
	}()

	if err := u.Validate(cfg); err != nil {
		return nil, err
	}
	lookup := make(map[string]string, len(cfg.LookupKeys))
	for _, k := range cfg.LookupKeys {
		v := strings.TrimSpace(params[k])
		if v == "" {
			return nil, fmt.Errorf("%w: missing path parameter %q", domain.ErrInvalidArgument, k)
		}
		lookup[k] = v
	}

	rec, err = u.resources[cfg.Kind].lookup(ctx, lookup)
	if err != nil {
		return nil, err
	}
	hash := rec.fields[cfg.HashField]
	if hash == nil || *hash == "" {
		return nil, fmt.Errorf("%w: %s is not protected by an access code", domain.ErrForbidden, cfg.Kind)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: missing access code", domain.ErrUnauthorized)
	}
	if !u.hasher.Compare(*hash, secret) {
		return nil, fmt.Errorf("%w: invalid access code", domain.ErrUnauthorized)
	}
	return rec, nil
}

func (u *accessUC) RotateAccessCode(ctx context.Context, userID, url, kind, code string) (*RotatedCode, error) {
	defer logging.TraceDuration(u.log, "AccessUC.RotateAccessCode")()

	url = strings.TrimSpace(url)
	k := ResourceKind(strings.ToLower(strings.TrimSpace(kind)))
	if url == "" || k == "" {
		return nil, fmt.Errorf("%w: url and type are required", domain.ErrInvalidArgument)
	}

	var (
		params map[string]string
		store  func(hash string) error
	)
	switch k {
	case ResourceEvent:
		category, slug, ok := strings.Cut(url, "_")
		if !ok || category == "" || slug == "" || strings.Contains(slug, "_") {
			return nil, fmt.Errorf("%w: event url must be 'category_slug'", domain.ErrInvalidArgument)
		}
		params = map[string]string{"category": category, "slug": slug}
		store = func(hash string) error {
			return u.codes.SetEventAccessCode(ctx, repository.NoTX, category, slug, hash)
		}
	case ResourceCandidate:
		params = map[string]string{"slug": url}
		store = func(hash string) error {
			return u.codes.SetCandidateAccessCode(ctx, repository.NoTX, url, hash)
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidArgument, kind)
	}

	rec, err := u.resources[k].lookup(ctx, params)
	if err != nil {
		return nil, err
	}
	if rec.ownerID != userID {
		return nil, fmt.Errorf("%w: %s belongs to another user", domain.ErrForbidden, k)
	}

	if strings.TrimSpace(code) == "" {
		if code, err = security.GenerateCode(security.DefaultCodeLength); err != nil {
			return nil, err
		}
	}
	hash, err := u.hasher.Hash(code)
	if err != nil {
		return nil, err
	}
	if err := store(hash); err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("kind", string(k)).Str("url", url).Msg("access code rotated")
	return &RotatedCode{Kind: k, URL: url, Code: code}, nil
}

