package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/domain/ports/repository"
	portuc "smartqr-backend/internal/domain/ports/usecase"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
)

// Compile-time checks
var (
	_ PaymentUseCase             = (*paymentUC)(nil)
	_ portuc.SubscriptionChecker = (*paymentUC)(nil)
)

type PaymentUseCase interface {
	CreatePaymentIntent(ctx context.Context, userID string, in PaymentIntentInput) (*PaymentIntentOutput, error)
	CreateSubscription(ctx context.Context, userID string, in SubscriptionInput) (*SubscriptionOutput, error)
	// CreatePortalSession returns the billing portal url for the user's customer.
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	// CheckSession reports whether the session behind token was consumed.
	CheckSession(ctx context.Context, token string) (*SessionState, error)
	CheckActiveSubscription(ctx context.Context, userID string) (bool, error)
}

type PaymentIntentInput struct {
	ProductID string
	Amount    float64 // major units
	Currency  string
	Type      model.PaymentType
}

type PaymentIntentOutput struct {
	ClientSecret string
	PaymentID    string
	PaymentToken string
}

type SubscriptionInput struct {
	ProductID string
	PriceID   string
	Type      model.PaymentType
}

type SubscriptionOutput struct {
	CheckoutSessionID string
	PaymentURL        string
}

type SessionState struct {
	Used bool
}

// PaymentSettings are the provider-facing knobs of the payment flows.
type PaymentSettings struct {
	Host               string // public base URL for redirects
	SuccessPath        string
	CancelPath         string
	PortalReturnURL    string
	SubscriptionAmount int64 // minor units
	Currency           string
}

type paymentUC struct {
	users    repository.UserRepository
	payments repository.PaymentRepository
	sessions repository.PaymentSessionRepository
	tm       repository.TransactionManager
	provider adapter.PaymentProvider
	settings PaymentSettings
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	users repository.UserRepository,
	payments repository.PaymentRepository,
	sessions repository.PaymentSessionRepository,
	tm repository.TransactionManager,
	provider adapter.PaymentProvider,
	settings PaymentSettings,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		users:    users,
		payments: payments,
		sessions: sessions,
		tm:       tm,
		provider: provider,
		settings: settings,
		log:      logger,
	}
}

func paymentMetadata(p *model.Payment) map[string]string {
	return map[string]string{
		model.MetaPaymentID:     p.ID,
		model.MetaType:          string(p.Type),
		model.MetaProductID:     p.ProductID,
		model.MetaSchemaVersion: model.MetadataSchemaVersion,
	}
}

func (u *paymentUC) CreatePaymentIntent(ctx context.Context, userID string, in PaymentIntentInput) (*PaymentIntentOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreatePaymentIntent")()

	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return nil, fmt.Errorf("%w: amount", domain.ErrInvalidArgument)
	}
	p, err := model.NewPayment(userID, in.ProductID, int64(math.Round(in.Amount*100)), in.Currency, in.Type)
	if err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending), string(p.Type))

	intent, err := u.provider.CreatePaymentIntent(ctx, p.Amount, p.Currency, paymentMetadata(p))
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("payment", p.ID).Msg("provider rejected payment intent")
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	var sess *model.PaymentSession
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := model.NewPaymentSession(p.ID, intent.ID, intent.Status, p.Type)
		if err != nil {
			return err
		}
		if err := u.sessions.Save(ctx, tx, s); err != nil {
			return err
		}
		sess = s
		return u.payments.SetPaymentIntentID(ctx, tx, p.ID, intent.ID)
	})
	if err != nil {
		return nil, err
	}
	return &PaymentIntentOutput{ClientSecret: intent.ClientSecret, PaymentID: p.ID, PaymentToken: sess.Token}, nil
}

func (u *paymentUC) CreateSubscription(ctx context.Context, userID string, in SubscriptionInput) (*SubscriptionOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateSubscription")()

	if in.ProductID == "" || in.PriceID == "" {
		return nil, fmt.Errorf("%w: productId and priceId are required", domain.ErrInvalidArgument)
	}
	if in.Type == "" {
		in.Type = model.PaymentTypePortfolio
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: type %q", domain.ErrInvalidArgument, in.Type)
	}

	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := u.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	p, err := u.payments.FindByUserAndProduct(ctx, repository.NoTX, userID, in.ProductID)
	switch {
	case err == nil:
		if p.Status == model.PaymentStatusSucceeded {
			return nil, domain.ErrPaymentAlreadyDone
		}
	case errors.Is(err, domain.ErrNotFound):
		p, err = model.NewPayment(userID, in.ProductID, u.settings.SubscriptionAmount, u.settings.Currency, in.Type)
		if err != nil {
			return nil, err
		}
		if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
			return nil, err
		}
		metrics.IncPayment(string(model.PaymentStatusPending), string(p.Type))
	default:
		return nil, err
	}

	checkout, err := u.provider.CreateSubscriptionCheckout(ctx, adapter.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    in.PriceID,
		SuccessURL: u.redirectURL(u.settings.SuccessPath),
		CancelURL:  u.redirectURL(u.settings.CancelPath),
		Metadata:   paymentMetadata(p),
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	sess, err := model.NewPaymentSession(p.ID, checkout.ID, model.SessionStatusPending, in.Type)
	if err != nil {
		return nil, err
	}
	if err := u.sessions.Save(ctx, repository.NoTX, sess); err != nil {
		return nil, err
	}
	return &SubscriptionOutput{CheckoutSessionID: checkout.ID, PaymentURL: checkout.URL}, nil
}

func (u *paymentUC) ensureCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	id, err := u.provider.CreateCustomer(ctx, user.Email, user.FullName())
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	if err := u.users.SetStripeCustomerID(ctx, repository.NoTX, user.ID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (u *paymentUC) redirectURL(path string) string {
	return strings.TrimRight(u.settings.Host, "/") + path
}

func (u *paymentUC) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", domain.ErrNoStripeCustomer
	}
	return u.provider.CreatePortalSession(ctx, *user.StripeCustomerID, u.settings.PortalReturnURL)
}

func (u *paymentUC) CheckSession(ctx context.Context, token string) (*SessionState, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidArgument)
	}
	s, err := u.sessions.FindByToken(ctx, repository.NoTX, token)
	if errors.Is(err, domain.ErrNotFound) {
		return &SessionState{Used: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SessionState{Used: s.Used}, nil
}

// CheckActiveSubscription asks the provider rather than local state. Any
// active subscription of the customer counts.
func (u *paymentUC) CheckActiveSubscription(ctx context.Context, userID string) (bool, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return false, nil
	}
	return u.provider.HasActiveSubscription(ctx, *user.StripeCustomerID)
}
