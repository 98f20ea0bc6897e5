package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/domain/ports/repository"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
)

// Compile-time check
var _ PDFQRUseCase = (*pdfQRUC)(nil)

// qrPixels is the rendered QR resolution before it is scaled onto the page.
const qrPixels = 512

type PDFQRUseCase interface {
	// MergeWithQR concatenates docs and stamps a QR code for qrText on the last page.
	MergeWithQR(ctx context.Context, docs [][]byte, qrText string, at Placement) ([]byte, error)
	GenerateQR(ctx context.Context, url string) (*QRImage, error)
}

type QRImage struct {
	Base64PNG string
	URL       string
}

type pdfQRUC struct {
	candidates repository.CandidateRepository
	composer   adapter.DocumentComposer
	qr         adapter.QREncoder
	maxFiles   int
	log        *zerolog.Logger
}

func NewPDFQRUseCase(candidates repository.CandidateRepository, composer adapter.DocumentComposer, qr adapter.QREncoder, maxFiles int, logger *zerolog.Logger) *pdfQRUC {
	return &pdfQRUC{candidates: candidates, composer: composer, qr: qr, maxFiles: maxFiles, log: logger}
}

func (u *pdfQRUC) MergeWithQR(ctx context.Context, docs [][]byte, qrText string, at Placement) (out []byte, err error) {
	defer logging.TraceDuration(u.log, "PDFQRUC.MergeWithQR")()
	start := time.Now()
	defer func() {
		result := "ok"
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInvalidArgument):
			result = "invalid"
		case errors.Is(err, domain.ErrNotFound):
			result = "not_found"
		default:
			result = "error"
		}
		metrics.ObservePDFComposition(result, time.Since(start))
	}()

	qrText = strings.TrimSpace(qrText)
	if len(docs) == 0 || qrText == "" {
		return nil, fmt.Errorf("%w: at least one pdf and a qr text are required", domain.ErrInvalidArgument)
	}
	if u.maxFiles > 0 && len(docs) > u.maxFiles {
		return nil, fmt.Errorf("%w: at most %d pdfs", domain.ErrInvalidArgument, u.maxFiles)
	}

	merged, pages, err := u.composer.Merge(ctx, docs)
	if err != nil {
		var inErr *domain.InputError
		if errors.As(err, &inErr) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, inErr)
		}
		return nil, err
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: merged document has no pages", domain.ErrInvalidArgument)
	}

	slug := SlugFromURL(qrText)
	if slug == "" {
		return nil, fmt.Errorf("%w: qr text has no slug", domain.ErrInvalidArgument)
	}
	if _, err := u.candidates.FindBySlug(ctx, repository.NoTX, slug); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("candidate %q: %w", slug, domain.ErrNotFound)
		}
		return nil, err
	}

	png, err := u.qr.Encode(qrText, qrPixels)
	if err != nil {
		return nil, err
	}
	w, h, err := u.composer.PageSize(ctx, merged, pages)
	if err != nil {
		return nil, err
	}
	box := at.Box(w, h)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err = u.composer.StampImage(ctx, merged, pages, png, box)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Debug().
		Int("inputs", len(docs)).Int("pages", pages).
		Float64("x", box.X).Float64("y", box.Y).Float64("size", box.Width).
		Msg("pdf merged and stamped")
	return out, nil
}

func (u *pdfQRUC) GenerateQR(ctx context.Context, url string) (*QRImage, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidArgument)
	}
	png, err := u.qr.Encode(url, 256)
	if err != nil {
		return nil, err
	}
	return &QRImage{Base64PNG: base64.StdEncoding.EncodeToString(png), URL: url}, nil
}
