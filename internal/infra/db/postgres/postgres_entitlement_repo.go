package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

// entitlementRepo owns every paid-feature flag. All methods expect to run
// inside the caller's transaction but accept nil for single-statement use.
type entitlementRepo struct{ pool *pgxpool.Pool }

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) exec(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (bool, error) {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, err
	}
	return affected(tag), nil
}

func (r *entitlementRepo) SetEventPrivatePaid(ctx context.Context, tx repository.Tx, eventID string, paid bool) (bool, error) {
	return r.exec(ctx, tx, `UPDATE events SET is_private_paid=$2, updated_at=NOW() WHERE id=$1;`, eventID, paid)
}

func (r *entitlementRepo) SetCandidatePrivatePaid(ctx context.Context, tx repository.Tx, candidateID string, paid bool) (bool, error) {
	return r.exec(ctx, tx, `UPDATE candidates SET is_private_paid=$2, updated_at=NOW() WHERE id=$1;`, candidateID, paid)
}

func (r *entitlementRepo) SetCandidateStatus(ctx context.Context, tx repository.Tx, candidateID string, status model.CandidateStatus) (bool, error) {
	return r.exec(ctx, tx, `UPDATE candidates SET status=$2, updated_at=NOW() WHERE id=$1;`, candidateID, status)
}

func (r *entitlementRepo) SetPortfolioPaid(ctx context.Context, tx repository.Tx, userID string, paid bool) (bool, error) {
	return r.exec(ctx, tx, `UPDATE portfolios SET is_paid=$2, updated_at=NOW() WHERE user_id=$1;`, userID, paid)
}

func (r *entitlementRepo) UpsertPortfolio(ctx context.Context, tx repository.Tx, p *model.Portfolio) error {
	const q = `
INSERT INTO portfolios (id, user_id, candidate_id, is_paid, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id) DO UPDATE SET candidate_id=$3, is_paid=$4, updated_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.CandidateID, p.IsPaid, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *entitlementRepo) SetUserPlan(ctx context.Context, tx repository.Tx, userID string, m model.UserModel, tier model.SubscriptionTier) error {
	_, err := execSQL(ctx, r.pool, tx, `UPDATE users SET model=$2, subscription=$3, updated_at=NOW() WHERE id=$1;`, userID, m, tier)
	return err
}

func (r *entitlementRepo) DeletePortfolioByUserID(ctx context.Context, tx repository.Tx, userID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM portfolios WHERE user_id=$1;`, userID)
	return err
}

func (r *entitlementRepo) DeleteCandidate(ctx context.Context, tx repository.Tx, candidateID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM candidates WHERE id=$1;`, candidateID)
	return err
}
