package repository

import (
	"context"

	"locum-backend/internal/shift/domain"
)

// OfferRepository stores merged shift offers keyed by fingerprint.
type OfferRepository interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.ShiftOffer, error)
	FindByID(ctx context.Context, id string) (*domain.ShiftOffer, error)
	Create(ctx context.Context, offer *domain.ShiftOffer) error
	// UpdateContent writes the extracted fields, confidence and source ids
	// of offer. Status and created_at are left as stored.
	UpdateContent(ctx context.Context, offer *domain.ShiftOffer) error
	// List orders by date ascending. A nil status lists every status.
	List(ctx context.Context, status *domain.OfferStatus, limit int) ([]*domain.ShiftOffer, error)
	UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error
}

// TemplateRepository stores booking templates keyed by (agency, channel).
type TemplateRepository interface {
	// FindForChannel returns templates of channel whose agency is one of agencies.
	FindForChannel(ctx context.Context, channel domain.BookingChannel, agencies ...string) ([]*domain.BookingTemplate, error)
	List(ctx context.Context) ([]*domain.BookingTemplate, error)
	Upsert(ctx context.Context, tpl *domain.BookingTemplate) error
}
