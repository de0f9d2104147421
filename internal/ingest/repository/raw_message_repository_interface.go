package repository

import (
	"context"

	"locum-backend/internal/ingest/domain"
)

// RawMessageRepository stores ingested messages keyed by (source, external_id).
type RawMessageRepository interface {
	// Upsert inserts msg, or overwrites content fields of the existing row.
	// The extracted flag of an existing row is left untouched, as is its
	// received_at when msg.ReceivedAtEstimated is set.
	Upsert(ctx context.Context, msg *domain.RawMessage) error
	FindByID(ctx context.Context, id string) (*domain.RawMessage, error)
	// FindUnextracted returns up to limit rows with extracted = false, fewest
	// failed attempts first, then oldest first.
	FindUnextracted(ctx context.Context, limit int) ([]*domain.RawMessage, error)
	MarkExtracted(ctx context.Context, id string) error
	RecordExtractFailure(ctx context.Context, id string) error
	CountBySource(ctx context.Context) (map[domain.Source]int64, error)
}
