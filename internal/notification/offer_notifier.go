package notification

import (
	"context"
	"fmt"
	"log"

	devicerepo "locum-backend/internal/device/repository"
	shiftdomain "locum-backend/internal/shift/domain"
	"locum-backend/pkg/fcm"
)

// PushSender delivers one notification to many devices and returns the
// tokens that were rejected.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// OfferNotifier pushes an alert to every registered device when an
// extraction run creates offers.
type OfferNotifier struct {
	devices devicerepo.DeviceRepository
	sender  PushSender
	baseURL string
}

func NewOfferNotifier(devices devicerepo.DeviceRepository, sender PushSender, appBaseURL string) *OfferNotifier {
	return &OfferNotifier{devices: devices, sender: sender, baseURL: appBaseURL}
}

func (n *OfferNotifier) NotifyNewOffers(ctx context.Context, offers []*shiftdomain.ShiftOffer) {
	if len(offers) == 0 {
		return
	}
	tokens, err := n.devices.ListTokens(ctx)
	if err != nil {
		log.Printf("[FCM] Error listing device tokens: %v", err)
		return
	}
	if len(tokens) == 0 {
		log.Printf("[FCM] No devices registered, skipping push notification")
		return
	}

	invalid, err := n.sender.SendToDevices(ctx, tokens, buildNotification(offers, n.baseURL))
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}

	// Drop tokens FCM no longer accepts
	for _, token := range invalid {
		if err := n.devices.Delete(ctx, token); err != nil {
			log.Printf("[FCM] Failed to delete stale token: %v", err)
		}
	}
}

func buildNotification(offers []*shiftdomain.ShiftOffer, baseURL string) fcm.NotificationData {
	first := offers[0]
	title := "New locum shift"
	if len(offers) > 1 {
		title = fmt.Sprintf("%d new locum shifts", len(offers))
	}

	body := first.Date
	if first.PracticeName != nil && *first.PracticeName != "" {
		body += " · " + *first.PracticeName
	} else if first.Town != nil && *first.Town != "" {
		body += " · " + *first.Town
	}
	if first.RateValue != nil {
		body += fmt.Sprintf(" · £%g", *first.RateValue)
		if first.RateUnit != nil && *first.RateUnit == shiftdomain.RatePerHour {
			body += "/h"
		}
	}

	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":     "offer_created",
			"offer_id": first.ID,
			"count":    fmt.Sprintf("%d", len(offers)),
		},
		Link: baseURL + "/",
	}
}
