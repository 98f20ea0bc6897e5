package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"smartqr-backend/internal/config"
	"smartqr-backend/internal/infra/metrics"
	"smartqr-backend/internal/usecase"
)

// Deps are the use cases and infrastructure the HTTP surface needs.
type Deps struct {
	Payments usecase.PaymentUseCase
	Webhooks usecase.WebhookUseCase
	PDFQR    usecase.PDFQRUseCase
	Access   usecase.AccessUseCase
	Profiles usecase.ProfileUseCase
	Media    usecase.MediaUseCase

	Auth     *AuthManager
	Limiter  Limiter // optional
	Throttle config.ThrottleConfig
	HTTP     config.HTTPConfig

	// Ready reports dependency health for GET /health. Optional.
	Ready func(ctx context.Context) error
}

type Server struct {
	d      Deps
	log    *zerolog.Logger
	router chi.Router
}

var (
	eventGuard = usecase.GuardConfig{
		Kind:       usecase.ResourceEvent,
		HashField:  usecase.HashFieldAccessCode,
		LookupKeys: []string{"category", "slug"},
	}
	candidateGuard = usecase.GuardConfig{
		Kind:       usecase.ResourceCandidate,
		HashField:  usecase.HashFieldAccessCode,
		LookupKeys: []string{"slug"},
	}
)

// NewServer builds the router. Guard configurations are validated here so a
// bad route declaration fails at startup.
func NewServer(d Deps, logger *zerolog.Logger) (*Server, error) {
	if d.Auth == nil {
		return nil, fmt.Errorf("api: auth manager is required")
	}
	for _, g := range []usecase.GuardConfig{eventGuard, candidateGuard} {
		if err := d.Access.Validate(g); err != nil {
			return nil, fmt.Errorf("api: guard %s: %w", g.Kind, err)
		}
	}
	s := &Server{d: d, log: logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	timeout := s.d.HTTP.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		CORS(s.d.HTTP.AllowedOrigins),
		Timeout(timeout),
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	auth := UserAuth(s.d.Auth)
	limit := func(route string, perDay int) Middleware {
		return Throttle(s.d.Limiter, route, perDay, s.log)
	}

	r.Route("/stripe", func(r chi.Router) {
		r.Post("/webhook", s.handleWebhook)
		r.With(auth, limit("create-payment-intent", s.d.Throttle.PaymentIntentPerDay)).
			Post("/create-payment-intent", s.handleCreatePaymentIntent)
		r.With(auth, limit("create-subscription", s.d.Throttle.SubscriptionPerDay)).
			Post("/create-subscription", s.handleCreateSubscription)
		r.With(auth).Get("/manage", s.handleManage)
		r.With(auth).Get("/check-payment-session", s.handleCheckPaymentSession)
	})

	r.Route("/pdf-qr", func(r chi.Router) {
		r.With(auth, limit("generate-n-merge", s.d.Throttle.PDFPerDay)).
			Post("/generate-n-merge", s.handleGenerateAndMerge)
		r.With(auth, limit("access-code", s.d.Throttle.AccessCodePerDay)).
			Put("/access-code/{url}", s.handleRotateAccessCode)
		r.Post("/{url}", s.handleGenerateQR)
	})

	r.Get("/event/access/{category}/{slug}", s.guarded(eventGuard, s.writeView))
	r.Route("/candidate", func(r chi.Router) {
		r.Get("/access/{slug}", s.guarded(candidateGuard, s.writeView))
		r.Get("/access/portfolio/{slug}", s.guarded(candidateGuard, func(w http.ResponseWriter, _ *http.Request, _ *usecase.ProtectedView) {
			writeJSON(w, http.StatusOK, map[string]bool{"access": true})
		}))
		r.With(auth).Post("/portfolio/assign", s.handleAssignPortfolio)
		r.With(auth).Put("/image", s.handleReplaceImage)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.d.Ready != nil {
		if err := s.d.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
