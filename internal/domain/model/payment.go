package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"smartqr-backend/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // intent or checkout created, awaiting provider confirmation
	PaymentStatusSucceeded PaymentStatus = "succeeded" // confirmed by a provider event; terminal
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentType tells the reconciliation engine which entitlement a payment unlocks.
type PaymentType string

const (
	PaymentTypePortfolio        PaymentType = "portfolio"
	PaymentTypePrivacyEvent     PaymentType = "privacy_event"
	PaymentTypePrivacyCandidate PaymentType = "privacy_candidate"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypePortfolio, PaymentTypePrivacyEvent, PaymentTypePrivacyCandidate:
		return true
	}
	return false
}

// Payment records a purchase attempt and its provider correlation ids.
type Payment struct {
	ID                    string // UUID
	UserID                string
	ProductID             string // event id, candidate id, or user id until a candidate exists
	Amount                int64  // minor units
	Currency              string
	Type                  PaymentType
	Status                PaymentStatus
	StripePaymentIntentID *string
	StripeSubscriptionID  *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CanTransitionTo enforces that a succeeded payment never regresses.
func (p *Payment) CanTransitionTo(next PaymentStatus) bool {
	if p.Status == PaymentStatusSucceeded {
		return next == PaymentStatusSucceeded
	}
	return true
}

// NewPayment builds a pending payment. amount is in minor units.
func NewPayment(userID, productID string, amount int64, currency string, typ PaymentType) (*Payment, error) {
	if userID == "" || productID == "" || amount <= 0 || !typ.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "eur"
	}
	now := time.Now()
	return &Payment{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Amount:    amount,
		Currency:  strings.ToLower(currency),
		Type:      typ,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const (
	SessionStatusOpen     = "open"
	SessionStatusPending  = "pending"
	SessionStatusComplete = "complete"
)

// PaymentSession links a provider intent or checkout session to a Payment.
// Used is a write-once latch.
type PaymentSession struct {
	ID              string
	PaymentID       string
	StripeSessionID string
	Status          string
	Type            PaymentType
	Used            bool
	Token           string // opaque client-facing handle
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPaymentSession links a provider session id to a payment and mints an opaque token.
func NewPaymentSession(paymentID, stripeSessionID, status string, typ PaymentType) (*PaymentSession, error) {
	if paymentID == "" || stripeSessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if status == "" {
		status = SessionStatusPending
	}
	now := time.Now()
	return &PaymentSession{
		ID:              uuid.NewString(),
		PaymentID:       paymentID,
		StripeSessionID: stripeSessionID,
		Status:          status,
		Type:            typ,
		Token:           ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
