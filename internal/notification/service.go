package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	syncdomain "locum-backend/internal/sync/domain"
	syncusecase "locum-backend/internal/sync/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Service pulls Gmail change notifications from a Pub/Sub subscription and
// runs a delta sync for each. It is the pull-mode twin of the push webhook.
type Service struct {
	pubsubClient *pubsub.Client
	sync         syncusecase.SyncUsecase
	topicName    string
	subName      string
}

func NewService(ctx context.Context, projectID, topicName, subName string, sync syncusecase.SyncUsecase, credentialsFile string) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	if subName == "" {
		subName = topicName + "-sub" // Convention: topic-sub
	}
	return &Service{
		pubsubClient: client,
		sync:         sync,
		topicName:    topicName,
		subName:      subName,
	}, nil
}

// Start blocks receiving messages until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		log.Printf("[PubSub] %v", err)
		return
	}

	// Deliveries are handled one at a time; sync is a singleton job.
	sub.ReceiveSettings.NumGoroutines = 1
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handleMessage(ctx, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking subscription existence: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking topic existence: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	log.Printf("[PubSub] Created subscription: %s", s.subName)
	return sub, nil
}

// handleMessage reports whether the message should be acked. Malformed
// payloads are acked so they are not redelivered.
func (s *Service) handleMessage(ctx context.Context, data []byte) bool {
	n := syncdomain.ParseNotification(data)
	if n.HistoryID == "" {
		log.Printf("[PubSub] Ignoring notification without historyId")
		return true
	}

	log.Printf("[PubSub] Received notification for: %s (historyId: %s)", n.EmailAddress, n.HistoryID)
	res, err := s.sync.HandleNotification(ctx, n.HistoryID.String())
	if err != nil {
		log.Printf("[PubSub] Delta sync failed: %v", err)
		return false
	}
	log.Printf("[PubSub] Delta sync ingested %d messages", res.Ingested)
	return true
}
