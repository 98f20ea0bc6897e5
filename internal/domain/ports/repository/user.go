package repository

import (
	"context"

	"smartqr-backend/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	SetStripeCustomerID(ctx context.Context, tx Tx, id, customerID string) error
}
