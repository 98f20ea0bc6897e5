package usecase

import (
	"math"
	"strings"

	"smartqr-backend/internal/domain/ports/adapter"
)

const (
	DefaultQRXPercent = 90.0
	DefaultQRYPercent = 5.0
	DefaultQRSize     = 100.0
)

// Placement positions the QR stamp. X and Y are percentages of the page
// measured from the bottom-left corner and denote the image center; Size is
// in points. NaN or infinite values fall back to the defaults, as does a
// non-positive size.
type Placement struct {
	XPercent float64
	YPercent float64
	Size     float64
}

// UnsetPlacement leaves every field to its default.
func UnsetPlacement() Placement {
	return Placement{XPercent: math.NaN(), YPercent: math.NaN(), Size: math.NaN()}
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Box converts the placement to an absolute box on a width x height page.
// The box always lies fully inside the page.
func (p Placement) Box(width, height float64) adapter.Rect {
	size := finiteOr(p.Size, DefaultQRSize)
	if size <= 0 {
		size = DefaultQRSize
	}
	size = math.Min(size, math.Min(width, height))

	x := finiteOr(p.XPercent, DefaultQRXPercent)/100*width - size/2
	y := finiteOr(p.YPercent, DefaultQRYPercent)/100*height - size/2

	return adapter.Rect{
		X:      clamp(x, 0, width-size),
		Y:      clamp(y, 0, height-size),
		Width:  size,
		Height: size,
	}
}

// SlugFromURL returns the last path segment of a profile url, without query
// or fragment.
func SlugFromURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
