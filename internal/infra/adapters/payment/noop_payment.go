package payment

import (
	"context"
	"fmt"
	"sync"

	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory provider for local runs and tests.
// Webhooks are still verified with the Stripe signature scheme.
type NoopPaymentGateway struct {
	mu            sync.Mutex
	seq           int64
	webhookSecret string

	Intents   map[string]adapter.IntentResult
	Metadata  map[string]map[string]string // provider id -> metadata
	Customers map[string]string            // customer id -> email
	Active    map[string]bool              // customer id -> has active subscription
}

func NewNoopPaymentGateway(webhookSecret string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		webhookSecret: webhookSecret,
		Intents:       make(map[string]adapter.IntentResult),
		Metadata:      make(map[string]map[string]string),
		Customers:     make(map[string]string),
		Active:        make(map[string]bool),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_noop%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("cus")
	g.Customers[id] = email
	return id, nil
}

func (g *NoopPaymentGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.IntentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("pi")
	res := adapter.IntentResult{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}
	g.Intents[id] = res
	g.Metadata[id] = copyMeta(metadata)
	return res, nil
}

func (g *NoopPaymentGateway) CreateSubscriptionCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("cs")
	g.Metadata[id] = copyMeta(req.Metadata)
	return adapter.CheckoutResult{ID: id, URL: "https://checkout.example.test/" + id}, nil
}

func (g *NoopPaymentGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.example.test/" + customerID + "?return=" + returnURL, nil
}

func (g *NoopPaymentGateway) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Active[customerID], nil
}

func (g *NoopPaymentGateway) ParseWebhook(payload []byte, signature string) (*model.WebhookEvent, error) {
	return ParseStripeWebhook(payload, signature, g.webhookSecret)
}
