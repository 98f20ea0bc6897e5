package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/usecase"
)

const apiKeyHeader = "X-Api-Key"

type viewHandler func(w http.ResponseWriter, r *http.Request, v *usecase.ProtectedView)

// guarded releases a resource only to callers presenting its access code in
// the X-Api-Key header.
func (s *Server) guarded(cfg usecase.GuardConfig, next viewHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string, len(cfg.LookupKeys))
		for _, k := range cfg.LookupKeys {
			params[k] = chi.URLParam(r, k)
		}
		view, err := s.d.Access.Open(r.Context(), cfg, params, r.Header.Get(apiKeyHeader))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, view)
	}
}

type protectedViewResponse struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	Category    string  `json:"category,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Firstname   string  `json:"firstname,omitempty"`
	Lastname    string  `json:"lastname,omitempty"`
	ImageKey    *string `json:"image,omitempty"`
}

func (s *Server) writeView(w http.ResponseWriter, _ *http.Request, v *usecase.ProtectedView) {
	writeJSON(w, http.StatusOK, protectedViewResponse{
		ID:          v.ID,
		Slug:        v.Slug,
		Category:    v.Category,
		Title:       v.Title,
		Description: v.Description,
		Firstname:   v.Firstname,
		Lastname:    v.Lastname,
		ImageKey:    v.ImageKey,
	})
}

func (s *Server) handleAssignPortfolio(w http.ResponseWriter, r *http.Request) {
	out, err := s.d.Profiles.AssignPortfolio(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"portfolioId": out.PortfolioID,
		"url":         out.URL,
		"status":      out.Status,
		"isPaid":      out.IsPaid,
	})
}

func (s *Server) handleReplaceImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: file is required", domain.ErrInvalidArgument))
		return
	}
	defer f.Close()

	url, err := s.d.Media.ReplaceCandidateImage(r.Context(), currentUser(r), adapter.UploadObject{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
