package document

import (
	"context"

	"smartqr-backend/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.DocumentComposer = (*limitedComposer)(nil)

type limitedComposer struct {
	inner adapter.DocumentComposer
	sem   chan struct{}
}

// NewLimitedComposer caps the number of documents processed at once.
func NewLimitedComposer(inner adapter.DocumentComposer, maxConcurrent int) adapter.DocumentComposer {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedComposer{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedComposer) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedComposer) release() { <-l.sem }

func (l *limitedComposer) Merge(ctx context.Context, docs [][]byte) ([]byte, int, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, 0, err
	}
	defer l.release()
	return l.inner.Merge(ctx, docs)
}

func (l *limitedComposer) PageSize(ctx context.Context, doc []byte, page int) (float64, float64, error) {
	return l.inner.PageSize(ctx, doc, page)
}

func (l *limitedComposer) StampImage(ctx context.Context, doc []byte, page int, png []byte, box adapter.Rect) ([]byte, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.StampImage(ctx, doc, page, png, box)
}
