//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/repository"
	"smartqr-backend/internal/infra/adapters/payment"
	red "smartqr-backend/internal/infra/redis"
	"smartqr-backend/internal/usecase"
)

const testWebhookSecret = "whsec_test_reconcile"

type webhookFixture struct {
	store  *memStore
	tm     *MockTxManager
	locker *MockLocker
	gw     *payment.NoopPaymentGateway
	uc     usecase.WebhookUseCase
}

// newWebhookFixture seeds a portfolio user with a candidate, an event, a
// one-time privacy payment with its intent session, and a subscription payment.
func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	s := newMemStore()
	s.addUser(model.User{ID: "u1", Email: "jane@example.test", Model: model.UserModelPortfolio, Subscription: model.SubscriptionPro})
	s.addCandidate(model.Candidate{ID: "c1", UserID: "u1", Slug: "jane", Status: model.CandidateStatusPending})
	s.addPortfolio(model.Portfolio{ID: "pf1", UserID: "u1", CandidateID: "c1"})
	s.addEvent(model.Event{ID: "e1", UserID: "u1", Category: "abc", Slug: "123"})

	s.addPayment(model.Payment{ID: "pay-ev", UserID: "u1", ProductID: "e1", Amount: 599, Currency: "eur", Type: model.PaymentTypePrivacyEvent, Status: model.PaymentStatusPending})
	s.addSession(model.PaymentSession{ID: "ps-ev", PaymentID: "pay-ev", StripeSessionID: "pi_1", Status: "requires_payment_method", Type: model.PaymentTypePrivacyEvent, Token: "tok-ev"})

	s.addPayment(model.Payment{ID: "pay-sub", UserID: "u1", ProductID: "c1", Amount: 599, Currency: "eur", Type: model.PaymentTypePortfolio, Status: model.PaymentStatusPending, StripeSubscriptionID: strPtr("sub_1")})

	f := &webhookFixture{
		store:  s,
		tm:     NewMockTxManager(s),
		locker: NewMockLocker(),
		gw:     payment.NewNoopPaymentGateway(testWebhookSecret),
	}
	f.uc = usecase.NewWebhookUseCase(
		&memPaymentRepo{s}, &memSessionRepo{s}, &memCandidateRepo{s}, &memEntitlementRepo{s},
		f.tm, f.gw, f.locker, newTestLogger(),
	)
	return f
}

func webhookEvent(t *testing.T, typ string, obj map[string]any) *model.WebhookEvent {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &model.WebhookEvent{ID: "evt_" + typ, Type: typ, Object: raw}
}

func intentSucceeded(t *testing.T, intentID string, meta map[string]string) *model.WebhookEvent {
	return webhookEvent(t, model.EventPaymentIntentSucceeded, map[string]any{
		"id": intentID, "object": "payment_intent", "metadata": meta,
	})
}

func TestWebhook_PaymentIntentSucceeded(t *testing.T) {
	ctx := context.Background()

	t.Run("replaying the event yields the same state", func(t *testing.T) {
		// --- Arrange ---
		f := newWebhookFixture(t)
		evt := intentSucceeded(t, "pi_1", map[string]string{"paymentId": "pay-ev", "type": "privacy_event", "productId": "e1", "schemaVersion": "1"})

		// --- Act ---
		require.NoError(t, f.uc.Apply(ctx, evt))
		once := f.store.snapshot()
		require.NoError(t, f.uc.Apply(ctx, evt))
		twice := f.store.snapshot()

		// --- Assert ---
		assert.Equal(t, once.payments, twice.payments)
		assert.Equal(t, once.sessions, twice.sessions)
		assert.Equal(t, once.events, twice.events)
		assert.Equal(t, once.candidates, twice.candidates)

		p, _ := f.store.payment("pay-ev")
		assert.Equal(t, model.PaymentStatusSucceeded, p.Status)
		sess, _ := f.store.session("pi_1")
		assert.True(t, sess.Used)
		assert.Equal(t, model.SessionStatusComplete, sess.Status)
		ev, _ := f.store.event("e1")
		assert.True(t, ev.IsPrivatePaid)
	})

	t.Run("privacy_candidate unlocks the candidate", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.store.addPayment(model.Payment{ID: "pay-c", UserID: "u1", ProductID: "c1", Amount: 599, Currency: "eur", Type: model.PaymentTypePrivacyCandidate, Status: model.PaymentStatusPending})

		require.NoError(t, f.uc.Apply(ctx, intentSucceeded(t, "pi_9", map[string]string{"paymentId": "pay-c"})))

		c, _ := f.store.candidate("c1")
		assert.True(t, c.IsPrivatePaid)
		ev, _ := f.store.event("e1")
		assert.False(t, ev.IsPrivatePaid)
	})

	t.Run("branches on the stored payment type, not metadata", func(t *testing.T) {
		f := newWebhookFixture(t)
		meta := map[string]string{"paymentId": "pay-ev", "type": "privacy_candidate", "productId": "c1"}

		require.NoError(t, f.uc.Apply(ctx, intentSucceeded(t, "pi_1", meta)))

		c, _ := f.store.candidate("c1")
		assert.False(t, c.IsPrivatePaid)
		ev, _ := f.store.event("e1")
		assert.True(t, ev.IsPrivatePaid)
	})

	t.Run("portfolio payment grants no privacy flag", func(t *testing.T) {
		f := newWebhookFixture(t)
		require.NoError(t, f.uc.Apply(ctx, intentSucceeded(t, "pi_x", map[string]string{"paymentId": "pay-sub"})))

		p, _ := f.store.payment("pay-sub")
		assert.Equal(t, model.PaymentStatusSucceeded, p.Status)
		c, _ := f.store.candidate("c1")
		assert.False(t, c.IsPrivatePaid)
	})

	t.Run("no paymentId metadata is a silent no-op", func(t *testing.T) {
		f := newWebhookFixture(t)
		require.NoError(t, f.uc.Apply(ctx, intentSucceeded(t, "pi_1", nil)))
		assert.Zero(t, f.store.Writes())
	})

	t.Run("unknown payment is a no-op", func(t *testing.T) {
		f := newWebhookFixture(t)
		require.NoError(t, f.uc.Apply(ctx, intentSucceeded(t, "pi_foreign", map[string]string{"paymentId": "nope"})))
		assert.Zero(t, f.store.Writes())
	})

	t.Run("a failing grant rolls back the session and payment", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.store.FailOn["SetEventPrivatePaid"] = errors.New("connection reset")
		before := f.store.snapshot()

		err := f.uc.Apply(ctx, intentSucceeded(t, "pi_1", map[string]string{"paymentId": "pay-ev"}))

		require.Error(t, err)
		after := f.store.snapshot()
		assert.Equal(t, before.payments, after.payments)
		assert.Equal(t, before.sessions, after.sessions)
	})
}

func TestWebhook_CheckoutSessionCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session returns normally without writes", func(t *testing.T) {
		// --- Arrange ---
		f := newWebhookFixture(t)
		evt := webhookEvent(t, model.EventCheckoutSessionCompleted, map[string]any{
			"id": "cs_unknown", "object": "checkout.session", "subscription": "sub_zz",
			"metadata": map[string]string{"paymentId": "pay-sub"},
		})

		// --- Act ---
		err := f.uc.Apply(ctx, evt)

		// --- Assert ---
		require.NoError(t, err)
		assert.Zero(t, f.store.Writes())
		assert.Empty(t, f.locker.Locked)
	})

	t.Run("latches the session and stores the subscription id", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.store.addPayment(model.Payment{ID: "pay-new", UserID: "u1", ProductID: "c1", Amount: 599, Currency: "eur", Type: model.PaymentTypePortfolio, Status: model.PaymentStatusPending})
		f.store.addSession(model.PaymentSession{ID: "ps-new", PaymentID: "pay-new", StripeSessionID: "cs_1", Status: model.SessionStatusPending, Token: "tok-new"})
		evt := webhookEvent(t, model.EventCheckoutSessionCompleted, map[string]any{
			"id": "cs_1", "object": "checkout.session",
			"subscription": map[string]any{"id": "sub_new", "object": "subscription"},
		})

		require.NoError(t, f.uc.Apply(ctx, evt))
		require.NoError(t, f.uc.Apply(ctx, evt))

		sess, _ := f.store.session("cs_1")
		assert.True(t, sess.Used)
		p, _ := f.store.payment("pay-new")
		require.NotNil(t, p.StripeSubscriptionID)
		assert.Equal(t, "sub_new", *p.StripeSubscriptionID)
		assert.Equal(t, model.PaymentStatusPending, p.Status, "checkout alone does not settle the payment")
		assert.Zero(t, f.locker.Held())
	})
}

func subscriptionEvent(t *testing.T, typ, id string, fields map[string]any) *model.WebhookEvent {
	obj := map[string]any{"id": id, "object": "subscription", "status": "active"}
	for k, v := range fields {
		obj[k] = v
	}
	return webhookEvent(t, typ, obj)
}

func TestWebhook_SubscriptionCancellation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		typ    string
		fields map[string]any
	}{
		{"scheduled via cancel_at", model.EventSubscriptionUpdated, map[string]any{"cancel_at": time.Now().Add(72 * time.Hour).Unix()}},
		{"scheduled at period end", model.EventSubscriptionUpdated, map[string]any{"cancel_at_period_end": true}},
		{"immediate", model.EventSubscriptionUpdated, map[string]any{"status": "canceled"}},
		{"created already cancelled", model.EventSubscriptionCreated, map[string]any{"status": "canceled"}},
		{"deleted", model.EventSubscriptionDeleted, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			f := newWebhookFixture(t)

			// --- Act ---
			err := f.uc.Apply(ctx, subscriptionEvent(t, tc.typ, "sub_1", tc.fields))

			// --- Assert ---
			require.NoError(t, err)
			_, hasCandidate := f.store.candidate("c1")
			_, hasPortfolio := f.store.portfolio("u1")
			u, _ := f.store.user("u1")
			assert.False(t, hasCandidate)
			assert.False(t, hasPortfolio)
			assert.Equal(t, model.UserModelStandard, u.Model)
			assert.Equal(t, model.SubscriptionFree, u.Subscription)
			assert.Contains(t, f.locker.Locked, red.WebhookLockKey("sub_1"))
		})
	}

	t.Run("active subscription update changes nothing", func(t *testing.T) {
		f := newWebhookFixture(t)
		require.NoError(t, f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionUpdated, "sub_1", nil)))
		assert.Zero(t, f.store.Writes())
	})

	t.Run("unknown subscription is a no-op", func(t *testing.T) {
		f := newWebhookFixture(t)
		require.NoError(t, f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionDeleted, "sub_other", nil)))
		assert.Zero(t, f.store.Writes())
	})

	t.Run("downgrade without a candidate still resets the plan", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.store.addUser(model.User{ID: "u2", Model: model.UserModelPortfolio, Subscription: model.SubscriptionPro})
		f.store.addPayment(model.Payment{ID: "pay-u2", UserID: "u2", ProductID: "u2", Amount: 599, Type: model.PaymentTypePortfolio, Status: model.PaymentStatusSucceeded, StripeSubscriptionID: strPtr("sub_2")})

		require.NoError(t, f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionDeleted, "sub_2", nil)))

		u, _ := f.store.user("u2")
		assert.Equal(t, model.UserModelStandard, u.Model)
		_, stillThere := f.store.candidate("c1")
		assert.True(t, stillThere, "other users' profiles are untouched")
	})
}

func TestWebhook_DowngradeIsAtomic(t *testing.T) {
	ctx := context.Background()
	steps := []string{"DeletePortfolioByUserID", "DeleteCandidate", "SetUserPlan"}

	for _, step := range steps {
		t.Run("fault at "+step, func(t *testing.T) {
			// --- Arrange ---
			f := newWebhookFixture(t)
			f.store.FailOn[step] = errors.New("injected fault")
			before := f.store.snapshot()

			// --- Act ---
			err := f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionUpdated, "sub_1", map[string]any{"status": "canceled"}))

			// --- Assert ---
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrIntegrity), "got %v", err)

			after := f.store.snapshot()
			assert.Equal(t, before.candidates, after.candidates)
			assert.Equal(t, before.portfolios, after.portfolios)
			assert.Equal(t, before.users, after.users)
			assert.Zero(t, f.locker.Held())
		})
	}
}

func TestWebhook_InvoicePaymentSucceeded(t *testing.T) {
	ctx := context.Background()

	t.Run("subscription id from parent details", func(t *testing.T) {
		// --- Arrange ---
		f := newWebhookFixture(t)
		evt := webhookEvent(t, model.EventInvoicePaymentSucceeded, map[string]any{
			"id": "in_1", "object": "invoice",
			"parent": map[string]any{
				"subscription_details": map[string]any{"subscription": "sub_1", "metadata": map[string]string{"paymentId": "pay-sub"}},
			},
		})

		// --- Act ---
		require.NoError(t, f.uc.Apply(ctx, evt))

		// --- Assert ---
		p, _ := f.store.payment("pay-sub")
		assert.Equal(t, model.PaymentStatusSucceeded, p.Status)
		c, _ := f.store.candidate("c1")
		assert.Equal(t, model.CandidateStatusActive, c.Status)
		pf, _ := f.store.portfolio("u1")
		assert.True(t, pf.IsPaid)
	})

	t.Run("falls back to the top-level subscription field", func(t *testing.T) {
		f := newWebhookFixture(t)
		evt := webhookEvent(t, model.EventInvoicePaymentSucceeded, map[string]any{"id": "in_2", "subscription": "sub_1"})

		require.NoError(t, f.uc.Apply(ctx, evt))

		p, _ := f.store.payment("pay-sub")
		assert.Equal(t, model.PaymentStatusSucceeded, p.Status)
	})

	t.Run("invoice for an unrelated subscription is skipped", func(t *testing.T) {
		f := newWebhookFixture(t)
		evt := webhookEvent(t, model.EventInvoicePaymentSucceeded, map[string]any{"id": "in_3", "subscription": "sub_unrelated"})

		require.NoError(t, f.uc.Apply(ctx, evt))
		assert.Zero(t, f.store.Writes())
	})

	t.Run("metadata naming a payment bound to another subscription is skipped", func(t *testing.T) {
		f := newWebhookFixture(t)
		evt := webhookEvent(t, model.EventInvoicePaymentSucceeded, map[string]any{
			"id": "in_4",
			"parent": map[string]any{
				"subscription_details": map[string]any{"subscription": "sub_other", "metadata": map[string]string{"paymentId": "pay-sub"}},
			},
		})

		require.NoError(t, f.uc.Apply(ctx, evt))

		assert.Zero(t, f.store.Writes())
		p, _ := f.store.payment("pay-sub")
		assert.Equal(t, "sub_1", *p.StripeSubscriptionID)
	})
}

// earlyCheckoutFixture adds a portfolio payment whose checkout session has
// not completed yet, so no subscription id is stored on it.
func earlyCheckoutFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := newWebhookFixture(t)
	f.store.addUser(model.User{ID: "u3", Email: "sam@example.test", Model: model.UserModelPortfolio, Subscription: model.SubscriptionPro})
	f.store.addCandidate(model.Candidate{ID: "c3", UserID: "u3", Slug: "sam", Status: model.CandidateStatusPending})
	f.store.addPortfolio(model.Portfolio{ID: "pf3", UserID: "u3", CandidateID: "c3"})
	f.store.addPayment(model.Payment{ID: "pay-early", UserID: "u3", ProductID: "c3", Amount: 599, Currency: "eur", Type: model.PaymentTypePortfolio, Status: model.PaymentStatusPending})
	f.store.addSession(model.PaymentSession{ID: "ps-early", PaymentID: "pay-early", StripeSessionID: "cs_early", Status: model.SessionStatusPending, Token: "tok-early"})
	return f
}

func TestWebhook_InvoiceBeforeCheckout(t *testing.T) {
	ctx := context.Background()

	// --- Arrange ---
	f := earlyCheckoutFixture(t)
	invoice := webhookEvent(t, model.EventInvoicePaymentSucceeded, map[string]any{
		"id": "in_early", "object": "invoice",
		"parent": map[string]any{
			"subscription_details": map[string]any{"subscription": "sub_early", "metadata": map[string]string{"paymentId": "pay-early", "schemaVersion": "1"}},
		},
	})
	checkout := webhookEvent(t, model.EventCheckoutSessionCompleted, map[string]any{
		"id": "cs_early", "object": "checkout.session", "subscription": "sub_early",
		"metadata": map[string]string{"paymentId": "pay-early"},
	})

	// --- Act ---
	require.NoError(t, f.uc.Apply(ctx, invoice))
	require.NoError(t, f.uc.Apply(ctx, checkout))

	// --- Assert ---
	p, _ := f.store.payment("pay-early")
	assert.Equal(t, model.PaymentStatusSucceeded, p.Status)
	require.NotNil(t, p.StripeSubscriptionID)
	assert.Equal(t, "sub_early", *p.StripeSubscriptionID)
	c, _ := f.store.candidate("c3")
	assert.Equal(t, model.CandidateStatusActive, c.Status)
	pf, _ := f.store.portfolio("u3")
	assert.True(t, pf.IsPaid)
	sess, _ := f.store.session("cs_early")
	assert.True(t, sess.Used)
	assert.Contains(t, f.locker.Locked, red.WebhookLockKey("sub_early"))
	assert.Zero(t, f.locker.Held())
}

func TestWebhook_SubscriptionBeforeCheckout(t *testing.T) {
	ctx := context.Background()
	meta := map[string]any{"metadata": map[string]string{"paymentId": "pay-early"}}

	t.Run("created event links the subscription", func(t *testing.T) {
		// --- Arrange ---
		f := earlyCheckoutFixture(t)

		// --- Act ---
		err := f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionCreated, "sub_early", meta))

		// --- Assert ---
		require.NoError(t, err)
		p, _ := f.store.payment("pay-early")
		require.NotNil(t, p.StripeSubscriptionID)
		assert.Equal(t, "sub_early", *p.StripeSubscriptionID)
		assert.Equal(t, model.PaymentStatusPending, p.Status)
		c, _ := f.store.candidate("c3")
		assert.Equal(t, model.CandidateStatusPending, c.Status)
	})

	t.Run("cancellation downgrades the metadata owner", func(t *testing.T) {
		f := earlyCheckoutFixture(t)
		fields := map[string]any{"status": "canceled", "metadata": meta["metadata"]}

		require.NoError(t, f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionUpdated, "sub_early", fields)))

		_, hasCandidate := f.store.candidate("c3")
		assert.False(t, hasCandidate)
		u, _ := f.store.user("u3")
		assert.Equal(t, model.UserModelStandard, u.Model)
		p, _ := f.store.payment("pay-early")
		require.NotNil(t, p.StripeSubscriptionID)
		assert.Equal(t, "sub_early", *p.StripeSubscriptionID)
		_, stillThere := f.store.candidate("c1")
		assert.True(t, stillThere)
	})

	t.Run("no metadata stays a no-op", func(t *testing.T) {
		f := earlyCheckoutFixture(t)
		require.NoError(t, f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionCreated, "sub_early", nil)))
		assert.Zero(t, f.store.Writes())
	})
}

func TestWebhook_StatusIsMonotonic(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T) []*model.WebhookEvent {
		return []*model.WebhookEvent{
			webhookEvent(t, model.EventCheckoutSessionCompleted, map[string]any{"id": "cs_m", "subscription": "sub_m"}),
			webhookEvent(t, model.EventInvoicePaymentSucceeded, map[string]any{"id": "in_m", "subscription": "sub_m"}),
			subscriptionEvent(t, model.EventSubscriptionUpdated, "sub_m", nil),
			intentSucceeded(t, "pi_m", map[string]string{"paymentId": "pay-m"}),
		}
	}
	orders := [][]int{
		{0, 1, 2, 3}, {1, 0, 2, 3}, {3, 2, 1, 0}, {2, 3, 0, 1}, {0, 3, 1, 2}, {1, 3, 0, 2},
	}

	for _, order := range orders {
		f := newWebhookFixture(t)
		f.store.addPayment(model.Payment{ID: "pay-m", UserID: "u1", ProductID: "c1", Amount: 599, Currency: "eur", Type: model.PaymentTypePortfolio, Status: model.PaymentStatusPending})
		f.store.addSession(model.PaymentSession{ID: "ps-m", PaymentID: "pay-m", StripeSessionID: "cs_m", Status: model.SessionStatusPending, Token: "tok-m"})
		events := build(t)

		seenSucceeded := false
		for _, i := range order {
			require.NoError(t, f.uc.Apply(ctx, events[i]))
			// replays interleaved with fresh deliveries
			require.NoError(t, f.uc.Apply(ctx, events[i]))

			p, _ := f.store.payment("pay-m")
			if seenSucceeded {
				assert.Equal(t, model.PaymentStatusSucceeded, p.Status, "order %v regressed", order)
			}
			seenSucceeded = seenSucceeded || p.Status == model.PaymentStatusSucceeded
		}
		assert.True(t, seenSucceeded, "order %v never settled", order)
	}
}

func signed(t *testing.T, body map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestWebhook_Handle(t *testing.T) {
	ctx := context.Background()
	body := map[string]any{
		"id":     "evt_live_1",
		"object": "event",
		"type":   model.EventPaymentIntentSucceeded,
		"data": map[string]any{"object": map[string]any{
			"id": "pi_1", "object": "payment_intent",
			"metadata": map[string]string{"paymentId": "pay-ev", "schemaVersion": "1"},
		}},
	}

	t.Run("verified event is applied", func(t *testing.T) {
		f := newWebhookFixture(t)
		payload, header := signed(t, body)

		require.NoError(t, f.uc.Handle(ctx, payload, header))

		ev, _ := f.store.event("e1")
		assert.True(t, ev.IsPrivatePaid)
	})

	t.Run("bad signature mutates nothing", func(t *testing.T) {
		f := newWebhookFixture(t)
		payload, _ := signed(t, body)

		err := f.uc.Handle(ctx, payload, "t=1,v1=deadbeef")

		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Zero(t, f.store.Writes())
	})

	t.Run("missing signature", func(t *testing.T) {
		f := newWebhookFixture(t)
		payload, _ := signed(t, body)
		assert.ErrorIs(t, f.uc.Handle(ctx, payload, ""), domain.ErrInvalidSignature)
	})
}

func TestWebhook_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		f := newWebhookFixture(t)
		require.NoError(t, f.uc.Apply(ctx, webhookEvent(t, "customer.created", map[string]any{"id": "cus_1"})))
		assert.Zero(t, f.store.Writes())
	})

	t.Run("malformed object is a handler error", func(t *testing.T) {
		f := newWebhookFixture(t)
		evt := &model.WebhookEvent{ID: "evt_bad", Type: model.EventInvoicePaymentSucceeded, Object: []byte(`[1,2`)}
		assert.ErrorIs(t, f.uc.Apply(ctx, evt), domain.ErrInvalidArgument)
	})

	t.Run("a panicking handler is reported, not propagated", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.tm.WithTxFunc = func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			panic("driver bug")
		}

		var err error
		assert.NotPanics(t, func() {
			err = f.uc.Apply(ctx, intentSucceeded(t, "pi_1", map[string]string{"paymentId": "pay-ev"}))
		})
		assert.Error(t, err)
	})

	t.Run("lock failure does not block reconciliation", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.locker.ErrOn[red.WebhookLockKey("sub_1")] = red.ErrLockBusy

		require.NoError(t, f.uc.Apply(ctx, subscriptionEvent(t, model.EventSubscriptionDeleted, "sub_1", nil)))

		u, _ := f.store.user("u1")
		assert.Equal(t, model.UserModelStandard, u.Model)
	})
}
