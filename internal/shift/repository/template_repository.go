package repository

import (
	"context"
	"time"

	"locum-backend/internal/shift/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) FindForChannel(ctx context.Context, channel domain.BookingChannel, agencies ...string) ([]*domain.BookingTemplate, error) {
	var templates []*domain.BookingTemplate
	err := r.db.WithContext(ctx).
		Where("channel = ? AND agency IN ?", channel, agencies).
		Find(&templates).Error
	return templates, err
}

func (r *templateRepository) List(ctx context.Context) ([]*domain.BookingTemplate, error) {
	var templates []*domain.BookingTemplate
	err := r.db.WithContext(ctx).Order("agency ASC, channel ASC").Find(&templates).Error
	return templates, err
}

// Upsert: INSERT ... ON CONFLICT (agency, channel) DO UPDATE
func (r *templateRepository) Upsert(ctx context.Context, tpl *domain.BookingTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	tpl.CreatedAt = time.Now()
	tpl.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agency"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject_template", "body_template", "updated_at"}),
	}).Create(tpl).Error
}
