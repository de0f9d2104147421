package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	shiftdomain "locum-backend/internal/shift/domain"
	"locum-backend/pkg/natsjs"
)

// EventPublisher publishes raw payloads with a dedup id.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, msgID string) error
}

// OfferEvents emits shifts.offer.created / shifts.offer.updated after merges.
type OfferEvents struct {
	publisher EventPublisher
}

func NewOfferEvents(publisher EventPublisher) *OfferEvents {
	return &OfferEvents{publisher: publisher}
}

type offerEvent struct {
	Type  string                  `json:"type"`
	Offer *shiftdomain.ShiftOffer `json:"offer"`
}

func (e *OfferEvents) OfferMerged(ctx context.Context, offer *shiftdomain.ShiftOffer, created bool) {
	kind := "updated"
	if created {
		kind = "created"
	}
	payload, err := json.Marshal(offerEvent{Type: "offer." + kind, Offer: offer})
	if err != nil {
		log.Printf("[NATS] Failed to encode offer event: %v", err)
		return
	}

	subject := fmt.Sprintf("%s.offer.%s", natsjs.SubjectPrefix, kind)
	msgID := fmt.Sprintf("%s:%s:%d", offer.ID, kind, offer.UpdatedAt.UnixNano())
	if err := e.publisher.Publish(ctx, subject, payload, msgID); err != nil {
		log.Printf("[NATS] Failed to publish %s: %v", subject, err)
	}
}
