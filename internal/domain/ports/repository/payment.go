package repository

import (
	"context"

	"smartqr-backend/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByUserAndProduct(ctx context.Context, tx Tx, userID, productID string) (*model.Payment, error)
	FindBySubscriptionID(ctx context.Context, tx Tx, subscriptionID string) (*model.Payment, error)
	SetPaymentIntentID(ctx context.Context, tx Tx, id, intentID string) error
	SetSubscriptionID(ctx context.Context, tx Tx, id, subscriptionID string) error
	// MarkSucceeded moves a payment to succeeded unless it already is.
	// It reports whether a row changed.
	MarkSucceeded(ctx context.Context, tx Tx, id string) (bool, error)
	// RepointProduct moves every payment of the user to productID.
	RepointProduct(ctx context.Context, tx Tx, userID, productID string) (int64, error)
}

// -----------------------------
// Payment sessions
// -----------------------------

type PaymentSessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PaymentSession) error
	FindByStripeSessionID(ctx context.Context, tx Tx, stripeSessionID string) (*model.PaymentSession, error)
	FindByToken(ctx context.Context, tx Tx, token string) (*model.PaymentSession, error)
	// MarkUsed latches used=true and status=complete. Marking an already used
	// or unknown session is not an error; the bool reports whether a row changed.
	MarkUsed(ctx context.Context, tx Tx, stripeSessionID string) (bool, error)
}
