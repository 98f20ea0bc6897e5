package usecase

import "context"

// SubscriptionChecker answers whether a user currently holds a paid
// subscription at the payment provider. Profile flows depend on it without
// pulling in the whole payment use case.
type SubscriptionChecker interface {
	CheckActiveSubscription(ctx context.Context, userID string) (bool, error)
}
