//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/domain/ports/repository"
	"smartqr-backend/internal/infra/worker"
)

// =============================
// In-memory store
// =============================

// memStore backs every in-memory repository. Tests inspect it directly and
// MockTxManager snapshots it to emulate rollback.
type memStore struct {
	mu sync.Mutex

	users      map[string]model.User
	candidates map[string]model.Candidate
	portfolios map[string]model.Portfolio // by user id
	events     map[string]model.Event
	payments   map[string]model.Payment
	sessions   map[string]model.PaymentSession // by stripe session id

	writes int
	// FailOn makes the named repository method return the error.
	FailOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]model.User{},
		candidates: map[string]model.Candidate{},
		portfolios: map[string]model.Portfolio{},
		events:     map[string]model.Event{},
		payments:   map[string]model.Payment{},
		sessions:   map[string]model.PaymentSession{},
		FailOn:     map[string]error{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	users      map[string]model.User
	candidates map[string]model.Candidate
	portfolios map[string]model.Portfolio
	events     map[string]model.Event
	payments   map[string]model.Payment
	sessions   map[string]model.PaymentSession
	writes     int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		users:      copyMap(s.users),
		candidates: copyMap(s.candidates),
		portfolios: copyMap(s.portfolios),
		events:     copyMap(s.events),
		payments:   copyMap(s.payments),
		sessions:   copyMap(s.sessions),
		writes:     s.writes,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = copyMap(snap.users)
	s.candidates = copyMap(snap.candidates)
	s.portfolios = copyMap(snap.portfolios)
	s.events = copyMap(snap.events)
	s.payments = copyMap(snap.payments)
	s.sessions = copyMap(snap.sessions)
	s.writes = snap.writes
}

// begin locks the store and returns the injected failure for op, if any.
func (s *memStore) begin(op string) error {
	s.mu.Lock()
	return s.FailOn[op]
}

func (s *memStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ---- seeding helpers ----

func (s *memStore) addUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) addCandidate(c model.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[c.ID] = c
}

func (s *memStore) addPortfolio(p model.Portfolio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolios[p.UserID] = p
}

func (s *memStore) addEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *memStore) addPayment(p model.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *memStore) addSession(ps model.PaymentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ps.StripeSessionID] = ps
}

// ---- getters for assertions ----

func (s *memStore) payment(id string) (model.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	return p, ok
}

func (s *memStore) session(stripeID string) (model.PaymentSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.sessions[stripeID]
	return ps, ok
}

func (s *memStore) candidate(id string) (model.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	return c, ok
}

func (s *memStore) portfolio(userID string) (model.Portfolio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	return p, ok
}

func (s *memStore) event(id string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	return e, ok
}

func (s *memStore) user(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// =============================
// Repositories
// =============================

// ---- payments ----

type memPaymentRepo struct{ s *memStore }

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func (r *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if err := r.s.begin("Payment.Save"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	cp := *p
	if old, ok := r.s.payments[p.ID]; ok && old.Status == model.PaymentStatusSucceeded {
		cp.Status = old.Status
	}
	r.s.payments[p.ID] = cp
	r.s.writes++
	return nil
}

func (r *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memPaymentRepo) FindByUserAndProduct(ctx context.Context, tx repository.Tx, userID, productID string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.UserID == userID && p.ProductID == productID {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPaymentRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.StripeSubscriptionID != nil && *p.StripeSubscriptionID == subscriptionID {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPaymentRepo) SetPaymentIntentID(ctx context.Context, tx repository.Tx, id, intentID string) error {
	if err := r.s.begin("Payment.SetPaymentIntentID"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.StripePaymentIntentID = &intentID
	r.s.payments[id] = p
	r.s.writes++
	return nil
}

func (r *memPaymentRepo) SetSubscriptionID(ctx context.Context, tx repository.Tx, id, subscriptionID string) error {
	if err := r.s.begin("Payment.SetSubscriptionID"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.StripeSubscriptionID = &subscriptionID
	r.s.payments[id] = p
	r.s.writes++
	return nil
}

func (r *memPaymentRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	if err := r.s.begin("Payment.MarkSucceeded"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status == model.PaymentStatusSucceeded {
		return false, nil
	}
	p.Status = model.PaymentStatusSucceeded
	r.s.payments[id] = p
	r.s.writes++
	return true, nil
}

func (r *memPaymentRepo) RepointProduct(ctx context.Context, tx repository.Tx, userID, productID string) (int64, error) {
	if err := r.s.begin("Payment.RepointProduct"); err != nil {
		r.s.mu.Unlock()
		return 0, err
	}
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.payments {
		if p.UserID == userID && p.Type == model.PaymentTypePortfolio && p.ProductID != productID {
			p.ProductID = productID
			r.s.payments[id] = p
			n++
		}
	}
	r.s.writes++
	return n, nil
}

// ---- payment sessions ----

type memSessionRepo struct{ s *memStore }

var _ repository.PaymentSessionRepository = (*memSessionRepo)(nil)

func (r *memSessionRepo) Save(ctx context.Context, tx repository.Tx, ps *model.PaymentSession) error {
	if err := r.s.begin("Session.Save"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[ps.StripeSessionID]; ok {
		return domain.ErrAlreadyExists
	}
	r.s.sessions[ps.StripeSessionID] = *ps
	r.s.writes++
	return nil
}

func (r *memSessionRepo) FindByStripeSessionID(ctx context.Context, tx repository.Tx, stripeSessionID string) (*model.PaymentSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ps, ok := r.s.sessions[stripeSessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ps, nil
}

func (r *memSessionRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.PaymentSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ps := range r.s.sessions {
		if ps.Token == token {
			cp := ps
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSessionRepo) MarkUsed(ctx context.Context, tx repository.Tx, stripeSessionID string) (bool, error) {
	if err := r.s.begin("Session.MarkUsed"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	ps, ok := r.s.sessions[stripeSessionID]
	if !ok || ps.Used {
		return false, nil
	}
	ps.Used = true
	ps.Status = model.SessionStatusComplete
	r.s.sessions[stripeSessionID] = ps
	r.s.writes++
	return true, nil
}

// ---- users ----

type memUserRepo struct{ s *memStore }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *memUserRepo) SetStripeCustomerID(ctx context.Context, tx repository.Tx, id, customerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.StripeCustomerID = &customerID
	r.s.users[id] = u
	r.s.writes++
	return nil
}

// ---- candidates / events / access codes ----

type memCandidateRepo struct{ s *memStore }

var _ repository.CandidateRepository = (*memCandidateRepo)(nil)

func (r *memCandidateRepo) find(match func(model.Candidate) bool) (*model.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.candidates {
		if match(c) {
			cp := c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memCandidateRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Candidate, error) {
	return r.find(func(c model.Candidate) bool { return c.ID == id })
}

func (r *memCandidateRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Candidate, error) {
	return r.find(func(c model.Candidate) bool { return c.Slug == slug })
}

func (r *memCandidateRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Candidate, error) {
	return r.find(func(c model.Candidate) bool { return c.UserID == userID })
}

func (r *memCandidateRepo) SetImageKey(ctx context.Context, tx repository.Tx, id, key string) error {
	if err := r.s.begin("Candidate.SetImageKey"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.ImageKey = &key
	r.s.candidates[id] = c
	r.s.writes++
	return nil
}

type memEventRepo struct{ s *memStore }

var _ repository.EventRepository = (*memEventRepo)(nil)

func (r *memEventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (r *memEventRepo) FindByCategoryAndSlug(ctx context.Context, tx repository.Tx, category, slug string) (*model.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.events {
		if e.Category == category && e.Slug == slug {
			cp := e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memAccessCodeRepo struct{ s *memStore }

var _ repository.AccessCodeRepository = (*memAccessCodeRepo)(nil)

func (r *memAccessCodeRepo) SetEventAccessCode(ctx context.Context, tx repository.Tx, category, slug, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, e := range r.s.events {
		if e.Category == category && e.Slug == slug {
			e.AccessCode = &hash
			r.s.events[id] = e
			r.s.writes++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memAccessCodeRepo) SetCandidateAccessCode(ctx context.Context, tx repository.Tx, slug, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.candidates {
		if c.Slug == slug {
			c.AccessCode = &hash
			r.s.candidates[id] = c
			r.s.writes++
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- portfolios ----

var _ repository.PortfolioRepository = (*memPortfolioRepo)(nil)

type memPortfolioRepo struct{ s *memStore }

func (r *memPortfolioRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Portfolio, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.portfolios[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// ---- entitlements ----

type memEntitlementRepo struct{ s *memStore }

var _ repository.EntitlementRepository = (*memEntitlementRepo)(nil)

func (r *memEntitlementRepo) SetEventPrivatePaid(ctx context.Context, tx repository.Tx, eventID string, paid bool) (bool, error) {
	if err := r.s.begin("SetEventPrivatePaid"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return false, nil
	}
	e.IsPrivatePaid = paid
	r.s.events[eventID] = e
	r.s.writes++
	return true, nil
}

func (r *memEntitlementRepo) SetCandidatePrivatePaid(ctx context.Context, tx repository.Tx, candidateID string, paid bool) (bool, error) {
	if err := r.s.begin("SetCandidatePrivatePaid"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[candidateID]
	if !ok {
		return false, nil
	}
	c.IsPrivatePaid = paid
	r.s.candidates[candidateID] = c
	r.s.writes++
	return true, nil
}

func (r *memEntitlementRepo) SetCandidateStatus(ctx context.Context, tx repository.Tx, candidateID string, status model.CandidateStatus) (bool, error) {
	if err := r.s.begin("SetCandidateStatus"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[candidateID]
	if !ok {
		return false, nil
	}
	c.Status = status
	r.s.candidates[candidateID] = c
	r.s.writes++
	return true, nil
}

func (r *memEntitlementRepo) SetPortfolioPaid(ctx context.Context, tx repository.Tx, userID string, paid bool) (bool, error) {
	if err := r.s.begin("SetPortfolioPaid"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.portfolios[userID]
	if !ok {
		return false, nil
	}
	p.IsPaid = paid
	r.s.portfolios[userID] = p
	r.s.writes++
	return true, nil
}

func (r *memEntitlementRepo) UpsertPortfolio(ctx context.Context, tx repository.Tx, p *model.Portfolio) error {
	if err := r.s.begin("UpsertPortfolio"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if old, ok := r.s.portfolios[p.UserID]; ok {
		old.CandidateID = p.CandidateID
		old.IsPaid = p.IsPaid
		r.s.portfolios[p.UserID] = old
	} else {
		r.s.portfolios[p.UserID] = *p
	}
	r.s.writes++
	return nil
}

func (r *memEntitlementRepo) SetUserPlan(ctx context.Context, tx repository.Tx, userID string, m model.UserModel, tier model.SubscriptionTier) error {
	if err := r.s.begin("SetUserPlan"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Model = m
	u.Subscription = tier
	r.s.users[userID] = u
	r.s.writes++
	return nil
}

func (r *memEntitlementRepo) DeletePortfolioByUserID(ctx context.Context, tx repository.Tx, userID string) error {
	if err := r.s.begin("DeletePortfolioByUserID"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	delete(r.s.portfolios, userID)
	r.s.writes++
	return nil
}

func (r *memEntitlementRepo) DeleteCandidate(ctx context.Context, tx repository.Tx, candidateID string) error {
	if err := r.s.begin("DeleteCandidate"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	delete(r.s.candidates, candidateID)
	r.s.writes++
	return nil
}

// =============================
// Transactions
// =============================

type MockTxManager struct {
	store      *memStore
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager(store *memStore) *MockTxManager {
	return &MockTxManager{store: store}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn and restores the store snapshot when fn fails, so tests can
// observe rollback.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.store == nil {
		return fn(ctx, repository.NoTX)
	}
	snap := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// =============================
// Adapters and infra
// =============================

// ---- In-memory Locker (implements redis.Locker port) ----

type MockLocker struct {
	mu     sync.Mutex
	held   map[string]string
	Locked []string
	ErrOn  map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ErrOn[key]; err != nil {
		return "", err
	}
	token := key + "-token"
	l.held[key] = token
	l.Locked = append(l.Locked, key)
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *MockLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// ---- Mailer ----

type MockMailer struct {
	mu      sync.Mutex
	Welcome []string
	Err     error
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) SendWelcome(ctx context.Context, to, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Welcome = append(m.Welcome, to)
	return m.Err
}

func (m *MockMailer) ConfirmEventJoin(ctx context.Context, to, name, eventTitle string) error {
	return m.Err
}

func (m *MockMailer) ConfirmMissionProposal(ctx context.Context, to, company, mission string) error {
	return m.Err
}

func (m *MockMailer) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Welcome...)
}

// syncTasks runs submitted tasks inline. Like worker.Pool, task errors are
// not reported to the submitter.
type syncTasks struct {
	err error
}

func (s *syncTasks) Submit(task worker.Task) error {
	if s.err != nil {
		return s.err
	}
	_ = task(context.Background())
	return nil
}

// ---- Subscription checker ----

type stubSubscriptions struct {
	active bool
	err    error
	calls  int
}

func (s *stubSubscriptions) CheckActiveSubscription(ctx context.Context, userID string) (bool, error) {
	s.calls++
	return s.active, s.err
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }
