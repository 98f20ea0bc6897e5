package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/usecase"
)

// mergeOptions is the JSON carried in the multipart "body" field.
// Coordinates may arrive as numbers or numeric strings.
type mergeOptions struct {
	QRText string          `json:"qrText"`
	X      json.RawMessage `json:"x"`
	Y      json.RawMessage `json:"y"`
	Size   json.RawMessage `json:"size"`
}

// parseCoord returns NaN for absent or unparsable values so the placement
// falls back to its default.
func parseCoord(raw string) float64 {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || raw == "null" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (s *Server) maxUpload() int64 {
	mb := s.d.HTTP.MaxUploadMB
	if mb <= 0 {
		mb = 25
	}
	return mb << 20
}

func (s *Server) handleGenerateAndMerge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, fmt.Errorf("%w: multipart form: %v", domain.ErrInvalidArgument, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var opts mergeOptions
	if raw := r.FormValue("body"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			writeError(w, r, fmt.Errorf("%w: body is not valid json", domain.ErrInvalidArgument))
			return
		}
	} else {
		opts.QRText = r.FormValue("qrText")
		opts.X = json.RawMessage(strconv.Quote(r.FormValue("x")))
		opts.Y = json.RawMessage(strconv.Quote(r.FormValue("y")))
		opts.Size = json.RawMessage(strconv.Quote(r.FormValue("size")))
	}

	files := r.MultipartForm.File["pdfs"]
	docs := make([][]byte, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: pdf %d: %v", domain.ErrInvalidArgument, i, err))
			return
		}
		b, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: pdf %d: %v", domain.ErrInvalidArgument, i, err))
			return
		}
		docs = append(docs, b)
	}

	out, err := s.d.PDFQR.MergeWithQR(r.Context(), docs, opts.QRText, usecase.Placement{
		XPercent: parseCoord(string(opts.X)),
		YPercent: parseCoord(string(opts.Y)),
		Size:     parseCoord(string(opts.Size)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="merged.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleGenerateQR(w http.ResponseWriter, r *http.Request) {
	img, err := s.d.PDFQR.GenerateQR(r.Context(), chi.URLParam(r, "url"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qrCode": img.Base64PNG, "qrUrl": img.URL})
}

type rotateAccessCodeRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (s *Server) handleRotateAccessCode(w http.ResponseWriter, r *http.Request) {
	var req rotateAccessCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.d.Access.RotateAccessCode(r.Context(), currentUser(r), chi.URLParam(r, "url"), req.Type, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"type":       string(out.Kind),
		"url":        out.URL,
		"accessCode": out.Code,
	})
}
