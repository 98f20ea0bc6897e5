package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/repository"
)

var _ repository.PaymentSessionRepository = (*paymentSessionRepo)(nil)

type paymentSessionRepo struct{ pool *pgxpool.Pool }

func NewPaymentSessionRepo(pool *pgxpool.Pool) *paymentSessionRepo {
	return &paymentSessionRepo{pool: pool}
}

const sessionColumns = `id, payment_id, stripe_session_id, status, type, used, token, created_at, updated_at`

func scanSession(row pgx.Row) (*model.PaymentSession, error) {
	s := &model.PaymentSession{}
	if err := row.Scan(&s.ID, &s.PaymentID, &s.StripeSessionID, &s.Status, &s.Type, &s.Used, &s.Token, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

// Save inserts a session; a second session for the same provider id is rejected
// by the unique constraint and surfaces as domain.ErrAlreadyExists.
func (r *paymentSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error {
	const q = `INSERT INTO payment_sessions (` + sessionColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.PaymentID, s.StripeSessionID, s.Status, s.Type, s.Used, s.Token, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *paymentSessionRepo) FindByStripeSessionID(ctx context.Context, tx repository.Tx, stripeSessionID string) (*model.PaymentSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE stripe_session_id=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, stripeSessionID)
	if err != nil {
		return nil, err
	}
	return scanSession(row)
}

func (r *paymentSessionRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.PaymentSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE token=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	return scanSession(row)
}

func (r *paymentSessionRepo) MarkUsed(ctx context.Context, tx repository.Tx, stripeSessionID string) (bool, error) {
	const q = `UPDATE payment_sessions SET used=TRUE, status='complete', updated_at=NOW() WHERE stripe_session_id=$1 AND used=FALSE;`
	tag, err := execSQL(ctx, r.pool, tx, q, stripeSessionID)
	if err != nil {
		return false, err
	}
	return affected(tag), nil
}
