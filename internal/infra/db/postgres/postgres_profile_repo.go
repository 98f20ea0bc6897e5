package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/repository"
)

var (
	_ repository.CandidateRepository  = (*profileRepo)(nil)
	_ repository.PortfolioRepository  = (*portfolioRepo)(nil)
	_ repository.EventRepository      = (*eventRepo)(nil)
	_ repository.AccessCodeRepository = (*accessCodeRepo)(nil)
)

// -----------------------------
// Candidates
// -----------------------------

type profileRepo struct{ pool *pgxpool.Pool }

func NewCandidateRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

const candidateColumns = `id, user_id, slug, firstname, lastname, description, image_key, is_private, is_private_paid, status, access_code, created_at, updated_at`

func scanCandidate(row pgx.Row) (*model.Candidate, error) {
	c := &model.Candidate{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Slug, &c.Firstname, &c.Lastname, &c.Description, &c.ImageKey, &c.IsPrivate, &c.IsPrivatePaid, &c.Status, &c.AccessCode, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return c, nil
}

func (r *profileRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg string) (*model.Candidate, error) {
	q := `SELECT ` + candidateColumns + ` FROM candidates WHERE ` + where + `=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	return scanCandidate(row)
}

func (r *profileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Candidate, error) {
	return r.findOne(ctx, tx, "id", id)
}

func (r *profileRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Candidate, error) {
	return r.findOne(ctx, tx, "slug", slug)
}

func (r *profileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Candidate, error) {
	return r.findOne(ctx, tx, "user_id", userID)
}

func (r *profileRepo) SetImageKey(ctx context.Context, tx repository.Tx, id, key string) error {
	const q = `UPDATE candidates SET image_key=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, key)
	if err != nil {
		return err
	}
	if !affected(tag) {
		return domain.ErrNotFound
	}
	return nil
}

// -----------------------------
// Portfolios
// -----------------------------

type portfolioRepo struct{ pool *pgxpool.Pool }

func NewPortfolioRepo(pool *pgxpool.Pool) *portfolioRepo {
	return &portfolioRepo{pool: pool}
}

func (r *portfolioRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Portfolio, error) {
	q := `SELECT id, user_id, candidate_id, is_paid, created_at, updated_at FROM portfolios WHERE user_id=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	p := &model.Portfolio{}
	if err := row.Scan(&p.ID, &p.UserID, &p.CandidateID, &p.IsPaid, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

// -----------------------------
// Events
// -----------------------------

type eventRepo struct{ pool *pgxpool.Pool }

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

const eventColumns = `id, user_id, category, slug, title, description, starts_at, is_private, is_private_paid, access_code, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	e := &model.Event{}
	if err := row.Scan(&e.ID, &e.UserID, &e.Category, &e.Slug, &e.Title, &e.Description, &e.StartsAt, &e.IsPrivate, &e.IsPrivatePaid, &e.AccessCode, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return e, nil
}

func (r *eventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id=$1` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEvent(row)
}

func (r *eventRepo) FindByCategoryAndSlug(ctx context.Context, tx repository.Tx, category, slug string) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE category=$1 AND slug=$2` + forUpdate(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, category, slug)
	if err != nil {
		return nil, err
	}
	return scanEvent(row)
}

// -----------------------------
// Access codes
// -----------------------------

type accessCodeRepo struct{ pool *pgxpool.Pool }

func NewAccessCodeRepo(pool *pgxpool.Pool) *accessCodeRepo {
	return &accessCodeRepo{pool: pool}
}

func (r *accessCodeRepo) SetEventAccessCode(ctx context.Context, tx repository.Tx, category, slug, hash string) error {
	const q = `UPDATE events SET access_code=$3, updated_at=NOW() WHERE category=$1 AND slug=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, category, slug, hash)
	if err != nil {
		return err
	}
	if !affected(tag) {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accessCodeRepo) SetCandidateAccessCode(ctx context.Context, tx repository.Tx, slug, hash string) error {
	const q = `UPDATE candidates SET access_code=$2, updated_at=NOW() WHERE slug=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, slug, hash)
	if err != nil {
		return err
	}
	if !affected(tag) {
		return domain.ErrNotFound
	}
	return nil
}
