package repository

import (
	"context"

	"smartqr-backend/internal/domain/model"
)

// CandidateRepository is the profile-side view of candidates. It has no way
// to change entitlement state; see EntitlementRepository.
type CandidateRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Candidate, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Candidate, error)
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Candidate, error)
	SetImageKey(ctx context.Context, tx Tx, id, key string) error
}

type PortfolioRepository interface {
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Portfolio, error)
}

type EventRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Event, error)
	FindByCategoryAndSlug(ctx context.Context, tx Tx, category, slug string) (*model.Event, error)
}

// AccessCodeRepository stores access-code hashes. Plaintext never reaches it.
type AccessCodeRepository interface {
	SetEventAccessCode(ctx context.Context, tx Tx, category, slug, hash string) error
	SetCandidateAccessCode(ctx context.Context, tx Tx, slug, hash string) error
}
