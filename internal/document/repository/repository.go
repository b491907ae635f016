package repository

import (
	"context"
	"errors"

	"github.com/signflow/signflow-server/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict means the stored version moved since the caller read it.
	ErrConflict = errors.New("document version conflict")
)

// Repository persists agreements. Save is conditioned on the version the
// caller read and bumps it on success.
type Repository interface {
	Create(ctx context.Context, d *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context, f document.Filter) ([]*document.Document, error)
	Count(ctx context.Context, f document.Filter) (int64, error)
	Save(ctx context.Context, d *document.Document, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	// Upsert writes an imported record as-is and reports whether it was new.
	Upsert(ctx context.Context, d *document.Document) (bool, error)
}
