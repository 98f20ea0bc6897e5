package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/domain/ports/repository"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
	red "smartqr-backend/internal/infra/redis"
)

// Compile-time check
var _ WebhookUseCase = (*reconcileUC)(nil)

// WebhookUseCase applies verified provider events to payments and entitlements.
type WebhookUseCase interface {
	// Handle verifies the signature and applies the event. A bad signature
	// returns domain.ErrInvalidSignature and mutates nothing.
	Handle(ctx context.Context, payload []byte, signature string) error
	Apply(ctx context.Context, evt *model.WebhookEvent) error
}

const webhookLockTTL = 15 * time.Second

type reconcileUC struct {
	payments     repository.PaymentRepository
	sessions     repository.PaymentSessionRepository
	candidates   repository.CandidateRepository
	entitlements repository.EntitlementRepository
	tm           repository.TransactionManager
	provider     adapter.PaymentProvider
	locker       red.Locker // optional
	log          *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PaymentRepository,
	sessions repository.PaymentSessionRepository,
	candidates repository.CandidateRepository,
	entitlements repository.EntitlementRepository,
	tm repository.TransactionManager,
	provider adapter.PaymentProvider,
	locker red.Locker,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		payments:     payments,
		sessions:     sessions,
		candidates:   candidates,
		entitlements: entitlements,
		tm:           tm,
		provider:     provider,
		locker:       locker,
		log:          logger,
	}
}

// ---- payload shapes (only the fields reconciliation reads) ----

// expandableID accepts either "id" or {"id": "..."}.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type intentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

type checkoutObject struct {
	ID           string            `json:"id"`
	Subscription expandableID      `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	CancelAt          int64             `json:"cancel_at"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

type invoiceObject struct {
	ID           string       `json:"id"`
	Subscription expandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandableID     `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (o invoiceObject) subscriptionID() string {
	if o.Parent != nil && o.Parent.SubscriptionDetails != nil && o.Parent.SubscriptionDetails.Subscription != "" {
		return string(o.Parent.SubscriptionDetails.Subscription)
	}
	return string(o.Subscription)
}

func (o invoiceObject) metadata() map[string]string {
	if o.Parent != nil && o.Parent.SubscriptionDetails != nil {
		return o.Parent.SubscriptionDetails.Metadata
	}
	return nil
}

// cancelled reports a scheduled or immediate cancellation.
func (o subscriptionObject) cancelled() bool {
	return o.CancelAt != 0 || o.CancelAtPeriodEnd || o.Status == "canceled"
}

// ---- dispatch ----

func (u *reconcileUC) Handle(ctx context.Context, payload []byte, signature string) error {
	evt, err := u.provider.ParseWebhook(payload, signature)
	if err != nil {
		metrics.IncWebhookEvent("unknown", "invalid_signature")
		u.log.Warn().Err(err).Msg("webhook signature verification failed")
		if errors.Is(err, domain.ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return u.Apply(ctx, evt)
}

func (u *reconcileUC) Apply(ctx context.Context, evt *model.WebhookEvent) (err error) {
	if evt == nil {
		return domain.ErrInvalidArgument
	}
	ctx = logging.WithEventID(ctx, evt.ID)
	log := logging.With(ctx, u.log).With().Str("event_type", evt.Type).Logger()
	start := time.Now()

	result := "noop"
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("webhook %s panicked: %v", evt.Type, rec)
		}
		if err != nil {
			result = "error"
			log.Error().Err(err).Msg("webhook handler failed")
		}
		metrics.IncWebhookEvent(evt.Type, result)
		metrics.ObserveWebhook(evt.Type, time.Since(start))
	}()

	var applied bool
	switch evt.Type {
	case model.EventPaymentIntentSucceeded:
		applied, err = u.onPaymentIntentSucceeded(ctx, &log, evt.Object)
	case model.EventCheckoutSessionCompleted:
		applied, err = u.onCheckoutCompleted(ctx, &log, evt.Object)
	case model.EventSubscriptionCreated, model.EventSubscriptionUpdated, model.EventSubscriptionDeleted:
		applied, err = u.onSubscriptionChanged(ctx, &log, evt.Type, evt.Object)
	case model.EventInvoicePaymentSucceeded:
		applied, err = u.onInvoicePaid(ctx, &log, evt.Object)
	default:
		result = "ignored"
		log.Debug().Msg("webhook event type not handled")
		return nil
	}
	if err != nil {
		return err
	}
	if applied {
		result = "applied"
	}
	log.Info().Str("result", result).Msg("webhook processed")
	return nil
}

// serialize takes a short per-correlation lock when a locker is configured.
// Failing to get the lock does not stop processing.
func (u *reconcileUC) serialize(ctx context.Context, log *zerolog.Logger, correlation string) func() {
	if u.locker == nil || correlation == "" {
		return func() {}
	}
	key := red.WebhookLockKey(correlation)
	token, err := u.locker.TryLock(ctx, key, webhookLockTTL)
	if err != nil {
		log.Warn().Err(err).Str("lock", key).Msg("webhook lock not acquired, continuing")
		return func() {}
	}
	return func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Str("lock", key).Msg("webhook unlock failed")
		}
	}
}

func checkSchema(log *zerolog.Logger, meta map[string]string) {
	if meta[model.MetaSchemaVersion] == "" {
		log.Debug().Msg("event metadata has no schemaVersion")
	}
}

func decodeObject(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty event object", domain.ErrInvalidArgument)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode event object: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

var txOpts = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// ---- handlers ----

func (u *reconcileUC) onPaymentIntentSucceeded(ctx context.Context, log *zerolog.Logger, raw json.RawMessage) (bool, error) {
	var pi intentObject
	if err := decodeObject(raw, &pi); err != nil {
		return false, err
	}
	paymentID := pi.Metadata[model.MetaPaymentID]
	if paymentID == "" {
		log.Info().Str("intent", pi.ID).Msg("payment intent without paymentId metadata, skipping")
		return false, nil
	}
	checkSchema(log, pi.Metadata)
	defer u.serialize(ctx, log, paymentID)()

	var (
		payment *model.Payment
		changed bool
		settled bool
	)
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		used, err := u.sessions.MarkUsed(ctx, tx, pi.ID)
		if err != nil {
			return err
		}
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("payment", paymentID).Msg("payment not found, skipping")
			changed = used
			return nil
		}
		if err != nil {
			return err
		}
		payment = p

		succeeded, err := u.payments.MarkSucceeded(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		granted, err := u.grantPrivacy(ctx, tx, log, p)
		if err != nil {
			return err
		}
		changed = used || succeeded || granted
		settled = succeeded
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reconcile payment intent %s: %w", pi.ID, err)
	}
	if settled {
		recordSettlement(payment)
	}
	if payment != nil {
		log.Debug().Str("payment", payment.ID).Str("type", string(payment.Type)).Bool("changed", changed).Msg("payment intent reconciled")
	}
	return changed, nil
}

// grantPrivacy sets the privacy entitlement the payment type unlocks.
func (u *reconcileUC) grantPrivacy(ctx context.Context, tx repository.Tx, log *zerolog.Logger, p *model.Payment) (bool, error) {
	var (
		found bool
		err   error
	)
	switch p.Type {
	case model.PaymentTypePrivacyEvent:
		found, err = u.entitlements.SetEventPrivatePaid(ctx, tx, p.ProductID, true)
	case model.PaymentTypePrivacyCandidate:
		found, err = u.entitlements.SetCandidatePrivatePaid(ctx, tx, p.ProductID, true)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !found {
		log.Warn().Str("payment", p.ID).Str("product", p.ProductID).Msg("entitled resource not found")
	}
	return found, nil
}

func (u *reconcileUC) onCheckoutCompleted(ctx context.Context, log *zerolog.Logger, raw json.RawMessage) (bool, error) {
	var cs checkoutObject
	if err := decodeObject(raw, &cs); err != nil {
		return false, err
	}
	checkSchema(log, cs.Metadata)

	sess, err := u.sessions.FindByStripeSessionID(ctx, repository.NoTX, cs.ID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Str("session", cs.ID).Msg("no payment session for checkout, skipping")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find checkout session %s: %w", cs.ID, err)
	}
	defer u.serialize(ctx, log, string(cs.Subscription))()

	var changed bool
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		used, err := u.sessions.MarkUsed(ctx, tx, cs.ID)
		if err != nil {
			return err
		}
		changed = used
		if cs.Subscription == "" {
			return nil
		}
		if err := u.payments.SetSubscriptionID(ctx, tx, sess.PaymentID, string(cs.Subscription)); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Warn().Str("payment", sess.PaymentID).Msg("payment for checkout session not found")
				return nil
			}
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reconcile checkout %s: %w", cs.ID, err)
	}
	return changed, nil
}

func (u *reconcileUC) onSubscriptionChanged(ctx context.Context, log *zerolog.Logger, kind string, raw json.RawMessage) (bool, error) {
	var sub subscriptionObject
	if err := decodeObject(raw, &sub); err != nil {
		return false, err
	}
	checkSchema(log, sub.Metadata)

	p, link, err := u.paymentForSubscription(ctx, log, sub.ID, sub.Metadata)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Str("subscription", sub.ID).Msg("no payment for subscription, skipping")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find payment by subscription %s: %w", sub.ID, err)
	}
	cancel := kind == model.EventSubscriptionDeleted || sub.cancelled()
	if !cancel && !link {
		return false, nil
	}
	defer u.serialize(ctx, log, sub.ID)()

	if !cancel {
		err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
			return u.payments.SetSubscriptionID(ctx, tx, p.ID, sub.ID)
		})
		if err != nil {
			return false, fmt.Errorf("link subscription %s: %w", sub.ID, err)
		}
		return true, nil
	}

	if err := u.downgrade(ctx, p, linkTarget(link, sub.ID)); err != nil {
		metrics.IncIntegrityFailure()
		log.Error().Err(err).Str("user", p.UserID).Str("subscription", sub.ID).Msg("downgrade transaction rolled back")
		return false, fmt.Errorf("%w: downgrade user %s: %v", domain.ErrIntegrity, p.UserID, err)
	}
	log.Info().Str("user", p.UserID).Str("subscription", sub.ID).Msg("subscription cancelled, user downgraded")
	return true, nil
}

// paymentForSubscription finds the payment behind a subscription. Events can
// arrive before checkout.session.completed stored the subscription id; the
// paymentId written into the subscription metadata then names the payment and
// link reports that the subscription id still has to be stored.
func (u *reconcileUC) paymentForSubscription(ctx context.Context, log *zerolog.Logger, subID string, meta map[string]string) (p *model.Payment, link bool, err error) {
	p, err = u.payments.FindBySubscriptionID(ctx, repository.NoTX, subID)
	if !errors.Is(err, domain.ErrNotFound) {
		return p, false, err
	}
	paymentID := meta[model.MetaPaymentID]
	if paymentID == "" {
		return nil, false, err
	}
	p, err = u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, false, err
	}
	if p.StripeSubscriptionID != nil && *p.StripeSubscriptionID != "" && *p.StripeSubscriptionID != subID {
		log.Warn().Str("payment", p.ID).Str("subscription", subID).Msg("payment already bound to another subscription")
		return nil, false, domain.ErrNotFound
	}
	log.Info().Str("payment", p.ID).Str("subscription", subID).Msg("payment resolved from subscription metadata")
	return p, true, nil
}

func linkTarget(link bool, subID string) string {
	if link {
		return subID
	}
	return ""
}

// downgrade deletes the portfolio and candidate and resets the user plan in
// a single transaction. A non-empty linkSub is stored on the payment first.
func (u *reconcileUC) downgrade(ctx context.Context, p *model.Payment, linkSub string) error {
	userID := p.UserID
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		if linkSub != "" {
			if err := u.payments.SetSubscriptionID(ctx, tx, p.ID, linkSub); err != nil {
				return fmt.Errorf("link subscription: %w", err)
			}
		}
		c, err := u.candidates.FindByUserID(ctx, tx, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if c != nil {
			if err := u.entitlements.DeletePortfolioByUserID(ctx, tx, userID); err != nil {
				return fmt.Errorf("delete portfolio: %w", err)
			}
			if err := u.entitlements.DeleteCandidate(ctx, tx, c.ID); err != nil {
				return fmt.Errorf("delete candidate: %w", err)
			}
		}
		if err := u.entitlements.SetUserPlan(ctx, tx, userID, model.UserModelStandard, model.SubscriptionFree); err != nil {
			return fmt.Errorf("reset user plan: %w", err)
		}
		return nil
	})
}

func (u *reconcileUC) onInvoicePaid(ctx context.Context, log *zerolog.Logger, raw json.RawMessage) (bool, error) {
	var inv invoiceObject
	if err := decodeObject(raw, &inv); err != nil {
		return false, err
	}
	subID := inv.subscriptionID()
	if subID == "" {
		log.Debug().Str("invoice", inv.ID).Msg("invoice without subscription, skipping")
		return false, nil
	}

	p, link, err := u.paymentForSubscription(ctx, log, subID, inv.metadata())
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Str("subscription", subID).Msg("no payment for invoice subscription, skipping")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find payment by subscription %s: %w", subID, err)
	}
	defer u.serialize(ctx, log, subID)()

	var changed, settled bool
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		if link {
			if err := u.payments.SetSubscriptionID(ctx, tx, p.ID, subID); err != nil {
				return err
			}
		}
		succeeded, err := u.payments.MarkSucceeded(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		active, err := u.entitlements.SetCandidateStatus(ctx, tx, p.ProductID, model.CandidateStatusActive)
		if err != nil {
			return err
		}
		if !active {
			log.Warn().Str("candidate", p.ProductID).Msg("candidate for subscription not found")
		}
		paid, err := u.entitlements.SetPortfolioPaid(ctx, tx, p.UserID, true)
		if err != nil {
			return err
		}
		if !paid {
			log.Warn().Str("user", p.UserID).Msg("portfolio for subscription not found")
		}
		changed = link || succeeded || active || paid
		settled = succeeded
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reconcile invoice %s: %w", inv.ID, err)
	}
	if settled {
		recordSettlement(p)
	}
	return changed, nil
}

func recordSettlement(p *model.Payment) {
	metrics.IncPayment(string(model.PaymentStatusSucceeded), string(p.Type))
	metrics.AddSettledAmount(p.Currency, string(p.Type), p.Amount)
}
