package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/adapter"
)

var _ adapter.QREncoder = (*QRRenderer)(nil)

// quietZone is the margin in modules around the symbol.
const quietZone = 1

// QRRenderer encodes text at error correction level M. go-qrcode only offers
// a fixed four-module border, so the symbol is drawn here with a one-module margin.
type QRRenderer struct{}

func NewQRRenderer() *QRRenderer { return &QRRenderer{} }

func (r *QRRenderer) Encode(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty qr text", domain.ErrInvalidArgument)
	}
	q, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	modules := len(bitmap) + 2*quietZone
	scale := size / modules
	if scale < 1 {
		scale = 1
	}
	side := modules * scale

	palette := color.Palette{color.White, color.Black}
	img := image.NewPaletted(image.Rect(0, 0, side, side), palette)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := (x + quietZone) * scale
			y0 := (y + quietZone) * scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(x0+dx, y0+dy, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
