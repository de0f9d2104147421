// Package fcm sends shift alerts through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// CollapseKey groups alerts so a device shows only the latest one.
const CollapseKey = "shift-offers"

type Client struct {
	messaging *messaging.Client
}

// NewClient initializes the Firebase app from a service-account file, or from
// application default credentials when credentialsFile is empty.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized")
	return &Client{messaging: mc}, nil
}

// NotificationData is one alert. Link is opened when the alert is clicked.
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string
	Link  string
}

// SendToDevices sends n to every token. It returns the tokens FCM reported as
// unregistered or malformed; other per-token failures are only logged.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, n NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	resp, err := c.messaging.SendEachForMulticast(ctx, buildMessage(tokens, n))
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}
	log.Printf("[FCM] Multicast sent: %d success, %d failures", resp.SuccessCount, resp.FailureCount)

	var invalid []string
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			invalid = append(invalid, tokens[i])
			continue
		}
		log.Printf("[FCM] Transient failure for token %s: %v", shorten(tokens[i]), r.Error)
	}
	return invalid, nil
}

func buildMessage(tokens []string, n NotificationData) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
		Android: &messaging.AndroidConfig{
			CollapseKey: CollapseKey,
			Priority:    "high",
		},
		Webpush: &messaging.WebpushConfig{
			Headers: map[string]string{"Urgency": "high"},
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Tag:   CollapseKey,
				Icon:  "/icon-192.svg",
			},
		},
	}
	if n.Link != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.Link}
	}
	return msg
}

func shorten(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
