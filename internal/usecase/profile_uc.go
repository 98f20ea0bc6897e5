package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/domain/ports/repository"
	portuc "smartqr-backend/internal/domain/ports/usecase"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
	"smartqr-backend/internal/infra/worker"
)

// Compile-time check
var _ ProfileUseCase = (*profileUC)(nil)

const mailTimeout = 30 * time.Second

type ProfileUseCase interface {
	// AssignPortfolio upgrades the user's existing profile to a portfolio.
	// The portfolio is paid when the user holds an active subscription or is exempted.
	AssignPortfolio(ctx context.Context, userID string) (*PortfolioAssignment, error)
}

type PortfolioAssignment struct {
	PortfolioID string
	URL         string
	Status      model.CandidateStatus
	IsPaid      bool
}

// TaskSubmitter queues after-commit work.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type profileUC struct {
	users        repository.UserRepository
	candidates   repository.CandidateRepository
	payments     repository.PaymentRepository
	entitlements repository.EntitlementRepository
	portfolios   repository.PortfolioRepository
	tm           repository.TransactionManager
	subs         portuc.SubscriptionChecker
	exempt       *ExemptionPolicy
	mailer       adapter.Mailer
	tasks        TaskSubmitter
	log          *zerolog.Logger
}

func NewProfileUseCase(
	users repository.UserRepository,
	candidates repository.CandidateRepository,
	payments repository.PaymentRepository,
	entitlements repository.EntitlementRepository,
	portfolios repository.PortfolioRepository,
	tm repository.TransactionManager,
	subs portuc.SubscriptionChecker,
	exempt *ExemptionPolicy,
	mailer adapter.Mailer,
	tasks TaskSubmitter,
	logger *zerolog.Logger,
) *profileUC {
	return &profileUC{
		users:        users,
		candidates:   candidates,
		payments:     payments,
		entitlements: entitlements,
		portfolios:   portfolios,
		tm:           tm,
		subs:         subs,
		exempt:       exempt,
		mailer:       mailer,
		tasks:        tasks,
		log:          logger,
	}
}

func (u *profileUC) AssignPortfolio(ctx context.Context, userID string) (*PortfolioAssignment, error) {
	defer logging.TraceDuration(u.log, "ProfileUC.AssignPortfolio")()

	candidate, err := u.candidates.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	active := u.exempt.IsExempted(user.Email)
	if !active {
		if active, err = u.subs.CheckActiveSubscription(ctx, userID); err != nil {
			return nil, fmt.Errorf("check subscription: %w", err)
		}
	}
	status := model.CandidateStatusPending
	if active {
		status = model.CandidateStatusActive
	}

	var stored *model.Portfolio
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.entitlements.SetCandidateStatus(ctx, tx, candidate.ID, status); err != nil {
			return err
		}
		if err := u.entitlements.SetUserPlan(ctx, tx, userID, model.UserModelPortfolio, model.SubscriptionPro); err != nil {
			return err
		}
		now := time.Now()
		if err := u.entitlements.UpsertPortfolio(ctx, tx, &model.Portfolio{
			ID:          uuid.NewString(),
			UserID:      userID,
			CandidateID: candidate.ID,
			IsPaid:      active,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		if active {
			if _, err := u.payments.RepointProduct(ctx, tx, userID, candidate.ID); err != nil {
				return err
			}
		}
		// the stored row wins over what was requested
		stored, err = u.portfolios.FindByUserID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("assign portfolio: %w", err)
	}

	u.sendAfterCommit(ctx, "welcome", func(ctx context.Context) error {
		return u.mailer.SendWelcome(ctx, user.Email, user.FullName())
	})

	return &PortfolioAssignment{
		PortfolioID: stored.ID,
		URL:         "smart-profile/portfolio/" + candidate.Slug,
		Status:      status,
		IsPaid:      stored.IsPaid,
	}, nil
}

// sendAfterCommit queues a best-effort mail. Failures are logged only.
func (u *profileUC) sendAfterCommit(ctx context.Context, kind string, send func(ctx context.Context) error) {
	if u.mailer == nil || u.tasks == nil {
		return
	}
	log := logging.With(ctx, u.log)
	err := u.tasks.Submit(func(wctx context.Context) error {
		mctx, cancel := context.WithTimeout(wctx, mailTimeout)
		defer cancel()
		if err := send(mctx); err != nil {
			return fmt.Errorf("%s mail: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		metrics.IncMailDelivery(kind, "dropped")
		log.Warn().Err(err).Str("kind", kind).Msg("mail not queued")
	}
}
