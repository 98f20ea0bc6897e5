package adapter

import "context"

// Rect is an axis-aligned box in PDF points, origin bottom-left.
type Rect struct {
	X, Y, Width, Height float64
}

// DocumentComposer merges and stamps PDF documents held in memory.
type DocumentComposer interface {
	// Merge concatenates docs in order. A document that cannot be read fails
	// the call with a *domain.InputError naming its index.
	Merge(ctx context.Context, docs [][]byte) (merged []byte, pages int, err error)
	PageSize(ctx context.Context, doc []byte, page int) (width, height float64, err error)
	StampImage(ctx context.Context, doc []byte, page int, png []byte, box Rect) ([]byte, error)
}

// QREncoder renders text as a PNG QR code, error correction level M.
type QREncoder interface {
	Encode(text string, size int) ([]byte, error)
}
