package usecase

import (
	"context"
	"errors"

	"locum-backend/internal/shift/domain"
)

var (
	ErrOfferNotFound = errors.New("offer not found")
	ErrInvalidStatus = errors.New("invalid offer status")
	ErrInvalidAction = errors.New("action channel must be email or whatsapp")
	// ErrExtractionLockLost ends a run whose lock was taken over mid-batch.
	ErrExtractionLockLost = errors.New("extraction lock lost")
)

// ExtractionSummary reports one extraction run. Processed counts exactly the
// raw messages whose extracted flag was flipped.
type ExtractionSummary struct {
	Skipped       bool `json:"skipped,omitempty"`
	Processed     int  `json:"processed"`
	Failed        int  `json:"failed"`
	OffersCreated int  `json:"offers_created"`
	OffersUpdated int  `json:"offers_updated"`
}

// ExtractionUsecase runs the single-flight extraction pass.
type ExtractionUsecase interface {
	Run(ctx context.Context) (*ExtractionSummary, error)
}

// OfferUsecase serves the offer list, status changes and booking actions.
type OfferUsecase interface {
	ListOffers(ctx context.Context, status *domain.OfferStatus) ([]*domain.ShiftOffer, error)
	UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error
	// BuildAction fills the selected template and returns a mailto: or wa.me link.
	BuildAction(ctx context.Context, id string, channel domain.BookingChannel) (*Action, error)
	SelectTemplate(ctx context.Context, channel domain.BookingChannel, agency string) (*domain.BookingTemplate, error)
	ListTemplates(ctx context.Context) ([]*domain.BookingTemplate, error)
	UpsertTemplate(ctx context.Context, tpl *domain.BookingTemplate) error
}

// Action is a ready-to-open booking request.
type Action struct {
	Channel domain.BookingChannel `json:"channel"`
	URL     string                `json:"url"`
	Subject string                `json:"subject,omitempty"`
	Body    string                `json:"body"`
}

// OfferEvents is told about every merged offer.
type OfferEvents interface {
	OfferMerged(ctx context.Context, offer *domain.ShiftOffer, created bool)
}

// OfferNotifier is told about offers created during one extraction run.
type OfferNotifier interface {
	NotifyNewOffers(ctx context.Context, offers []*domain.ShiftOffer)
}
