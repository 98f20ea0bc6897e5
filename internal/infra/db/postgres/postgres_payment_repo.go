package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, product_id, amount, currency, type, status, stripe_payment_intent_id, stripe_subscription_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.ProductID, &p.Amount, &p.Currency, &p.Type, &p.Status, &p.StripePaymentIntentID, &p.StripeSubscriptionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

// Save upserts a payment. A succeeded status is never overwritten.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  product_id=$3, amount=$4, currency=$5, type=$6,
  status=CASE WHEN payments.status='succeeded' THEN payments.status ELSE $7 END,
  stripe_payment_intent_id=COALESCE($8, payments.stripe_payment_intent_id),
  stripe_subscription_id=COALESCE($9, payments.stripe_subscription_id),
  updated_at=$11;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.ProductID, p.Amount, p.Currency, p.Type, p.Status, p.StripePaymentIntentID, p.StripeSubscriptionID, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// FindByUserAndProduct returns the most recent payment for the pair.
func (r *paymentRepo) FindByUserAndProduct(ctx context.Context, tx repository.Tx, userID, productID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 AND product_id=$2 ORDER BY created_at DESC LIMIT 1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, productID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE stripe_subscription_id=$1 ORDER BY created_at DESC LIMIT 1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) SetPaymentIntentID(ctx context.Context, tx repository.Tx, id, intentID string) error {
	const q = `UPDATE payments SET stripe_payment_intent_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, intentID)
	return err
}

func (r *paymentRepo) SetSubscriptionID(ctx context.Context, tx repository.Tx, id, subscriptionID string) error {
	const q = `UPDATE payments SET stripe_subscription_id=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, subscriptionID)
	if err != nil {
		return err
	}
	if !affected(tag) {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE payments SET status='succeeded', updated_at=NOW() WHERE id=$1 AND status<>'succeeded';`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, err
	}
	return affected(tag), nil
}

func (r *paymentRepo) RepointProduct(ctx context.Context, tx repository.Tx, userID, productID string) (int64, error) {
	const q = `UPDATE payments SET product_id=$2, updated_at=NOW() WHERE user_id=$1 AND type='portfolio' AND product_id<>$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
