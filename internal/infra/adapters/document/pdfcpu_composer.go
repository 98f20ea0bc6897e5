package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/adapter"
)

var _ adapter.DocumentComposer = (*PdfcpuComposer)(nil)

var (
	ErrNoPages     = errors.New("document has no pages")
	ErrPageOutside = errors.New("page out of range")
)

var disableConfigDir sync.Once

// PdfcpuComposer implements DocumentComposer on top of pdfcpu, entirely in memory.
type PdfcpuComposer struct{}

func NewPdfcpuComposer() *PdfcpuComposer {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PdfcpuComposer{}
}

func (c *PdfcpuComposer) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (c *PdfcpuComposer) Merge(ctx context.Context, docs [][]byte) ([]byte, int, error) {
	if len(docs) == 0 {
		return nil, 0, fmt.Errorf("%w: no documents", domain.ErrInvalidArgument)
	}
	readers := make([]io.ReadSeeker, 0, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if len(doc) == 0 {
			return nil, 0, &domain.InputError{Index: i, Err: errors.New("empty document")}
		}
		n, err := api.PageCount(bytes.NewReader(doc), c.conf())
		if err != nil {
			return nil, 0, &domain.InputError{Index: i, Err: err}
		}
		if n == 0 {
			return nil, 0, &domain.InputError{Index: i, Err: ErrNoPages}
		}
		readers = append(readers, bytes.NewReader(doc))
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, c.conf()); err != nil {
		return nil, 0, fmt.Errorf("merge documents: %w", err)
	}
	pages, err := api.PageCount(bytes.NewReader(out.Bytes()), c.conf())
	if err != nil {
		return nil, 0, fmt.Errorf("count merged pages: %w", err)
	}
	if pages == 0 {
		return nil, 0, ErrNoPages
	}
	return out.Bytes(), pages, nil
}

// PageSize returns the width and height in points of the 1-based page.
func (c *PdfcpuComposer) PageSize(ctx context.Context, doc []byte, page int) (float64, float64, error) {
	dims, err := api.PageDims(bytes.NewReader(doc), c.conf())
	if err != nil {
		return 0, 0, fmt.Errorf("read page dimensions: %w", err)
	}
	if page < 1 || page > len(dims) {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrPageOutside, page, len(dims))
	}
	d := dims[page-1]
	return d.Width, d.Height, nil
}

// StampImage draws png onto page with its lower-left corner at (box.X, box.Y).
func (c *PdfcpuComposer) StampImage(ctx context.Context, doc []byte, page int, png []byte, box adapter.Rect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("decode stamp image: %w", err)
	}
	if img.Width == 0 || box.Width <= 0 {
		return nil, fmt.Errorf("%w: empty stamp", domain.ErrInvalidArgument)
	}

	desc := fmt.Sprintf("pos:bl, off:%.2f %.2f, scalefactor:%.4f abs, rot:0, op:1",
		box.X, box.Y, box.Width/float64(img.Width))
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(png), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("build stamp: %w", err)
	}

	var out bytes.Buffer
	pages := []string{strconv.Itoa(page)}
	if err := api.AddWatermarks(bytes.NewReader(doc), &out, pages, wm, c.conf()); err != nil {
		return nil, fmt.Errorf("apply stamp: %w", err)
	}
	return out.Bytes(), nil
}
