package usecase

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"locum-backend/internal/ingest/domain"
	"locum-backend/internal/ingest/repository"
	"locum-backend/pkg/chatexport"
)

type ingestUsecase struct {
	repo repository.RawMessageRepository
	loc  *time.Location
	now  func() time.Time
}

// NewIngestUsecase creates the ingestor. loc is the zone chat export
// timestamps are read in.
func NewIngestUsecase(repo repository.RawMessageRepository, loc *time.Location) IngestUsecase {
	if loc == nil {
		loc = time.Local
	}
	return &ingestUsecase{repo: repo, loc: loc, now: time.Now}
}

func (u *ingestUsecase) Ingest(ctx context.Context, msg domain.CanonicalMessage) error {
	if msg.ExternalID == "" {
		return fmt.Errorf("ingest %s message: empty external id", msg.Source)
	}

	raw := &domain.RawMessage{
		Source:      msg.Source,
		ExternalID:  msg.ExternalID,
		ContentText: domain.ContentText(msg),
		ContentMeta: msg.Meta,
		ContentHash: domain.ContentHash(msg),
	}
	if msg.ReceivedAt != nil {
		raw.ReceivedAt = *msg.ReceivedAt
	} else {
		raw.ReceivedAt = u.now()
		raw.ReceivedAtEstimated = true
	}
	if err := u.repo.Upsert(ctx, raw); err != nil {
		return fmt.Errorf("ingest %s/%s: %w", msg.Source, msg.ExternalID, err)
	}
	return nil
}

func (u *ingestUsecase) ImportChatExport(ctx context.Context, r io.Reader) (int, error) {
	msgs, err := chatexport.Parse(r, u.loc)
	if err != nil {
		return 0, fmt.Errorf("read chat export: %w", err)
	}

	count := 0
	for _, m := range msgs {
		if err := u.Ingest(ctx, domain.FromChatMessage(m)); err != nil {
			return count, err
		}
		count++
	}
	log.Printf("[Ingest] imported %d chat messages", count)
	return count, nil
}

func (u *ingestUsecase) Stats(ctx context.Context) (map[domain.Source]int64, error) {
	return u.repo.CountBySource(ctx)
}
