package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"locum-backend/internal/shift/domain"
	"locum-backend/internal/shift/repository"
)

// Fingerprint is the identity key of an offer:
// date|start_time|postcode|practice_name|rate_value|agency, absent fields empty.
func Fingerprint(o domain.ExtractedOffer) string {
	rate := ""
	if o.RateValue != nil {
		rate = strconv.FormatFloat(*o.RateValue, 'f', -1, 64)
	}
	return strings.Join([]string{
		o.Date,
		deref(o.StartTime),
		deref(o.Postcode),
		deref(o.PracticeName),
		rate,
		deref(o.Agency),
	}, "|")
}

// MergeEngine folds extracted offers into stored offers by fingerprint.
type MergeEngine struct {
	offers repository.OfferRepository
}

func NewMergeEngine(offers repository.OfferRepository) *MergeEngine {
	return &MergeEngine{offers: offers}
}

// Merge inserts the offer or reconciles it with the stored one sharing its
// fingerprint. Descriptive fields are last-write-wins; confidence keeps the
// max and source ids only grow.
func (m *MergeEngine) Merge(ctx context.Context, offer domain.ExtractedOffer, rawID string) (*domain.ShiftOffer, bool, error) {
	fp := Fingerprint(offer)

	existing, err := m.offers.FindByFingerprint(ctx, fp)
	if err != nil {
		return nil, false, fmt.Errorf("find offer %q: %w", fp, err)
	}

	if existing == nil {
		created := &domain.ShiftOffer{
			Fingerprint:  fp,
			SourceRawIDs: domain.StringSet{rawID},
			Status:       domain.StatusNew,
			Confidence:   offer.Confidence,
		}
		applyFields(created, offer)
		if err := m.offers.Create(ctx, created); err != nil {
			return nil, false, fmt.Errorf("create offer: %w", err)
		}
		return created, true, nil
	}

	applyFields(existing, offer)
	existing.SourceRawIDs = existing.SourceRawIDs.Union(rawID)
	if offer.Confidence > existing.Confidence {
		existing.Confidence = offer.Confidence
	}
	if err := m.offers.UpdateContent(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("update offer %s: %w", existing.ID, err)
	}
	// Status may have moved since the read.
	stored, err := m.offers.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, false, fmt.Errorf("reload offer %s: %w", existing.ID, err)
	}
	if stored != nil {
		existing = stored
	}
	return existing, false, nil
}

func applyFields(dst *domain.ShiftOffer, src domain.ExtractedOffer) {
	dst.Date = src.Date
	dst.StartTime = src.StartTime
	dst.EndTime = src.EndTime
	dst.RateValue = src.RateValue
	dst.RateUnit = src.RateUnit
	dst.PracticeName = src.PracticeName
	dst.Postcode = src.Postcode
	dst.Town = src.Town
	dst.Agency = src.Agency
	dst.BookingChannel = src.BookingChannel
	dst.BookingTarget = src.BookingTarget
	dst.Notes = src.Notes
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
