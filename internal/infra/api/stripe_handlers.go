package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/model"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/usecase"
)

// Stripe rejects payloads above this size anyway.
const maxWebhookBytes = 1 << 20

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	err = s.d.Webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, r, err)
	default:
		// non-2xx makes the provider redeliver
		logging.With(r.Context(), s.log).Error().Err(err).Msg("webhook not applied")
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
	}
}

type createPaymentIntentRequest struct {
	ProductID string  `json:"productId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Type      string  `json:"type"`
}

type createPaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	PaymentID    string `json:"paymentId"`
	PaymentToken string `json:"paymentToken"`
}

func (s *Server) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createPaymentIntentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.d.Payments.CreatePaymentIntent(r.Context(), currentUser(r), usecase.PaymentIntentInput{
		ProductID: req.ProductID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Type:      model.PaymentType(req.Type),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createPaymentIntentResponse{
		ClientSecret: out.ClientSecret,
		PaymentID:    out.PaymentID,
		PaymentToken: out.PaymentToken,
	})
}

type createSubscriptionRequest struct {
	ProductID string `json:"productId"`
	PriceID   string `json:"priceId"`
	Type      string `json:"type"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.d.Payments.CreateSubscription(r.Context(), currentUser(r), usecase.SubscriptionInput{
		ProductID: req.ProductID,
		PriceID:   req.PriceID,
		Type:      model.PaymentType(req.Type),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"checkoutSessionId": out.CheckoutSessionID,
		"paymentUrl":        out.PaymentURL,
	})
}

func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	url, err := s.d.Payments.CreatePortalSession(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleCheckPaymentSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.d.Payments.CheckSession(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"used": st.Used})
}
