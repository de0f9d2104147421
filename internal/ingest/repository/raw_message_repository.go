package repository

import (
	"context"
	"time"

	"locum-backend/internal/ingest/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type rawMessageRepository struct {
	db *gorm.DB
}

func NewRawMessageRepository(db *gorm.DB) RawMessageRepository {
	return &rawMessageRepository{db: db}
}

// Upsert: INSERT ... ON CONFLICT (source, external_id) DO UPDATE content columns.
func (r *rawMessageRepository) Upsert(ctx context.Context, msg *domain.RawMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	columns := []string{"content_text", "content_meta", "content_hash", "updated_at"}
	if !msg.ReceivedAtEstimated {
		columns = append(columns, "received_at")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(msg).Error
}

func (r *rawMessageRepository) FindByID(ctx context.Context, id string) (*domain.RawMessage, error) {
	var msg domain.RawMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *rawMessageRepository) FindUnextracted(ctx context.Context, limit int) ([]*domain.RawMessage, error) {
	var msgs []*domain.RawMessage
	err := r.db.WithContext(ctx).
		Where("extracted = ?", false).
		Order("extract_attempts ASC, received_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *rawMessageRepository) MarkExtracted(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.RawMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"extracted":  true,
			"updated_at": time.Now(),
		}).Error
}

func (r *rawMessageRepository) RecordExtractFailure(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.RawMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"extract_attempts": gorm.Expr("extract_attempts + 1"),
			"updated_at":       time.Now(),
		}).Error
}

func (r *rawMessageRepository) CountBySource(ctx context.Context) (map[domain.Source]int64, error) {
	var rows []struct {
		Source domain.Source
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.RawMessage{}).
		Select("source, count(*) as count").
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Source]int64, len(rows))
	for _, row := range rows {
		counts[row.Source] = row.Count
	}
	return counts, nil
}
