package repository

import (
	"context"
	"time"

	"locum-backend/internal/shift/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type offerRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.ShiftOffer, error) {
	return r.first(ctx, "fingerprint = ?", fingerprint)
}

func (r *offerRepository) FindByID(ctx context.Context, id string) (*domain.ShiftOffer, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *offerRepository) first(ctx context.Context, query string, arg interface{}) (*domain.ShiftOffer, error) {
	var offer domain.ShiftOffer
	err := r.db.WithContext(ctx).Where(query, arg).First(&offer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepository) Create(ctx context.Context, offer *domain.ShiftOffer) error {
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(offer).Error
}

var contentColumns = []string{
	"date", "start_time", "end_time", "rate_value", "rate_unit",
	"practice_name", "postcode", "town", "agency",
	"booking_channel", "booking_target", "notes",
	"confidence", "source_raw_ids", "updated_at",
}

// UpdateContent uses Select so nil pointers are written as NULL.
func (r *offerRepository) UpdateContent(ctx context.Context, offer *domain.ShiftOffer) error {
	offer.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&domain.ShiftOffer{}).Where("id = ?", offer.ID).
		Select(contentColumns).
		Updates(offer)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *offerRepository) List(ctx context.Context, status *domain.OfferStatus, limit int) ([]*domain.ShiftOffer, error) {
	var offers []*domain.ShiftOffer
	query := r.db.WithContext(ctx).Model(&domain.ShiftOffer{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Order("date ASC, start_time ASC NULLS LAST").Limit(limit).Find(&offers).Error
	return offers, err
}

func (r *offerRepository) UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.ShiftOffer{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
