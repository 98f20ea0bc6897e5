package repository

import (
	"context"

	"smartqr-backend/internal/domain/model"
)

// EntitlementRepository holds every write that grants or revokes paid
// features. Only payment reconciliation and the portfolio assignment flow
// receive it.
//
// Flag setters report whether the target row exists so callers can tell a
// missing correlation from a failure.
type EntitlementRepository interface {
	SetEventPrivatePaid(ctx context.Context, tx Tx, eventID string, paid bool) (bool, error)
	SetCandidatePrivatePaid(ctx context.Context, tx Tx, candidateID string, paid bool) (bool, error)
	SetCandidateStatus(ctx context.Context, tx Tx, candidateID string, status model.CandidateStatus) (bool, error)
	SetPortfolioPaid(ctx context.Context, tx Tx, userID string, paid bool) (bool, error)
	UpsertPortfolio(ctx context.Context, tx Tx, p *model.Portfolio) error
	SetUserPlan(ctx context.Context, tx Tx, userID string, m model.UserModel, tier model.SubscriptionTier) error
	DeletePortfolioByUserID(ctx context.Context, tx Tx, userID string) error
	DeleteCandidate(ctx context.Context, tx Tx, candidateID string) error
}
