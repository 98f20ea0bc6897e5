package adapter

import (
	"context"

	"smartqr-backend/internal/domain/model"
)

// IntentResult is the provider-side view of a created payment intent.
type IntentResult struct {
	ID           string
	ClientSecret string
	Status       string
}

type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	// Metadata is attached to both the checkout session and the subscription.
	Metadata map[string]string
}

type CheckoutResult struct {
	ID  string
	URL string
}

// PaymentProvider is the hex port for the card/subscription provider.
type PaymentProvider interface {
	Name() string

	CreateCustomer(ctx context.Context, email, name string) (customerID string, err error)
	// CreatePaymentIntent charges amount (minor units) once; metadata is echoed back by webhooks.
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (IntentResult, error)
	CreateSubscriptionCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (url string, err error)
	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)

	// ParseWebhook verifies the signature header against the raw payload.
	// It returns domain.ErrInvalidSignature on any verification failure.
	ParseWebhook(payload []byte, signature string) (*model.WebhookEvent, error)
}
