package model

import "encoding/json"

// Webhook event kinds handled by reconciliation.
const (
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
)

// WebhookEvent is a verified provider event. Object holds the raw data.object.
type WebhookEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// Payment metadata keys round-tripped through the provider.
const (
	MetaPaymentID     = "paymentId"
	MetaType          = "type"
	MetaProductID     = "productId"
	MetaSchemaVersion = "schemaVersion"

	MetadataSchemaVersion = "1"
)
