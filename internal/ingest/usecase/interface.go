package usecase

import (
	"context"
	"io"

	"locum-backend/internal/ingest/domain"
)

// IngestUsecase normalizes and stores raw messages.
type IngestUsecase interface {
	// Ingest upserts msg keyed by (source, external id). Re-ingesting is a no-op
	// unless the content changed.
	Ingest(ctx context.Context, msg domain.CanonicalMessage) error
	// ImportChatExport parses a transcript and ingests every message, returning the count.
	ImportChatExport(ctx context.Context, r io.Reader) (int, error)
	Stats(ctx context.Context) (map[domain.Source]int64, error)
}
