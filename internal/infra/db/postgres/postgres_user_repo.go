package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT id, email, firstname, lastname, stripe_customer_id, model, subscription, created_at, updated_at FROM users WHERE id=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Firstname, &u.Lastname, &u.StripeCustomerID, &u.Model, &u.Subscription, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return u, nil
}

func (r *userRepo) SetStripeCustomerID(ctx context.Context, tx repository.Tx, id, customerID string) error {
	const q = `UPDATE users SET stripe_customer_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, customerID)
	return err
}
