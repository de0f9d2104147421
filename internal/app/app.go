// Package app builds the object graph shared by the HTTP server and shiftctl.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	accountdomain "locum-backend/internal/account/domain"
	accountrepo "locum-backend/internal/account/repository"
	authusecase "locum-backend/internal/auth/usecase"
	devicedomain "locum-backend/internal/device/domain"
	devicerepo "locum-backend/internal/device/repository"
	ingestdomain "locum-backend/internal/ingest/domain"
	ingestrepo "locum-backend/internal/ingest/repository"
	ingestusecase "locum-backend/internal/ingest/usecase"
	"locum-backend/internal/notification"
	shiftdomain "locum-backend/internal/shift/domain"
	shiftrepo "locum-backend/internal/shift/repository"
	shiftusecase "locum-backend/internal/shift/usecase"
	"locum-backend/internal/sync/scheduler"
	syncusecase "locum-backend/internal/sync/usecase"
	"locum-backend/pkg/ai"
	"locum-backend/pkg/backoff"
	"locum-backend/pkg/config"
	"locum-backend/pkg/database"
	"locum-backend/pkg/fcm"
	"locum-backend/pkg/gmail"
	"locum-backend/pkg/natsjs"
	"locum-backend/pkg/utils/crypto"

	"gorm.io/gorm"
)

const defaultTopic = "gmail-updates"

// Options overrides how the extractor reads its Ollama settings. Nil getters
// fall back to the static configuration.
type Options struct {
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// App holds the wired usecases.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	Auth       authusecase.AuthUsecase
	OAuth      authusecase.OAuthUsecase
	Sync       syncusecase.SyncUsecase
	Ingest     ingestusecase.IngestUsecase
	Extraction shiftusecase.ExtractionUsecase
	Offers     shiftusecase.OfferUsecase
	Devices    devicerepo.DeviceRepository

	closers []func() error
}

// New connects to storage and wires every component. Optional integrations
// (FCM, NATS) are skipped with a warning when unconfigured or unreachable.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&accountdomain.GmailAccount{},
		&ingestdomain.RawMessage{},
		&shiftdomain.ShiftOffer{},
		&shiftdomain.BookingTemplate{},
		&devicedomain.Device{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	cipher, err := crypto.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db}

	// Repositories
	accounts := accountrepo.NewAccountRepository(db)
	raws := ingestrepo.NewRawMessageRepository(db)
	offers := shiftrepo.NewOfferRepository(db)
	templates := shiftrepo.NewTemplateRepository(db)
	a.Devices = devicerepo.NewDeviceRepository(db)

	executor := backoff.New(cfg.BackoffRetries, cfg.BackoffBaseDelay)
	oauthConfig := authusecase.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	tokenManager := authusecase.NewTokenManager(cipher, oauthConfig)
	credentials := authusecase.NewCredentialService(accounts, tokenManager, executor)
	gmailService := gmail.NewService()

	extractor, err := ai.NewOfferExtractor(ai.DynamicConfig{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiApiKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: getterOr(opts.GetOllamaBaseURL, cfg.OllamaBaseURL),
		GetOllamaModel:   getterOr(opts.GetOllamaModel, cfg.OllamaModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	log.Printf("[AI] Extractor initialized with provider: %s", cfg.AIProvider)

	var events shiftusecase.OfferEvents
	if publisher := a.connectNATS(ctx); publisher != nil {
		events = notification.NewOfferEvents(publisher)
	}
	var notifier shiftusecase.OfferNotifier
	if client := a.connectFCM(ctx); client != nil {
		notifier = notification.NewOfferNotifier(a.Devices, client, cfg.AppBaseURL)
	}

	a.Ingest = ingestusecase.NewIngestUsecase(raws, time.Local)
	a.Extraction = shiftusecase.NewExtractionUsecase(
		accounts, raws, extractor, shiftusecase.NewMergeEngine(offers), executor, events, notifier,
		shiftusecase.ExtractionConfig{BatchSize: cfg.ExtractionBatchSize, LockTTL: cfg.ExtractionLockTTL},
	)
	a.Offers = shiftusecase.NewOfferUsecase(offers, templates)
	a.Sync = syncusecase.NewSyncUsecase(accounts, credentials, gmailService, a.Ingest, executor, a.Extraction, syncusecase.Config{
		FallbackWindow: cfg.FallbackWindow,
		TopicName:      TopicResource(cfg.GoogleProjectID, cfg.GooglePubSubTopic),
		WatchLabelName: cfg.WatchLabelName,
	})

	a.Auth = authusecase.NewAuthUsecase(cfg.JWTSecret)
	a.OAuth = authusecase.NewOAuthUsecase(oauthConfig, a.Auth, tokenManager, accounts, gmailService, cfg.DefaultConnectQuery)
	a.OAuth.SetWatchRenewer(func(ctx context.Context) error {
		_, err := a.Sync.RenewWatch(ctx)
		return err
	})

	return a, nil
}

// StartPushListener runs the Pub/Sub pull subscriber until ctx is done. It is
// a no-op when GOOGLE_PROJECT_ID is unset.
func (a *App) StartPushListener(ctx context.Context) {
	if a.Config.GoogleProjectID == "" {
		log.Printf("[WARN] GoogleProjectID not configured, notification service disabled")
		return
	}

	topicName := shortTopic(a.Config.GooglePubSubTopic)
	notifService, err := notification.NewService(ctx, a.Config.GoogleProjectID, topicName, a.Config.GooglePubSubSub, a.Sync, a.Config.GoogleCredentials)
	if err != nil {
		log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		return
	}
	a.closers = append(a.closers, notifService.Close)
	go notifService.Start(ctx)
}

// StartScheduler runs watch renewal and timed extraction until ctx is done.
// It is off unless SCHEDULER_INTERVAL is set; external cron via shiftctl is the default.
func (a *App) StartScheduler(ctx context.Context) {
	if a.Config.SchedulerInterval <= 0 {
		return
	}
	s := scheduler.NewScheduler(a.Sync, a.Extraction, scheduler.Config{
		Interval:     a.Config.SchedulerInterval,
		RenewBefore:  a.Config.WatchRenewBefore,
		ExtractEvery: a.Config.ExtractInterval,
	})
	s.Start(ctx)
}

// Close releases optional integrations.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Printf("[WARN] close: %v", err)
		}
	}
}

func (a *App) connectNATS(ctx context.Context) *natsjs.Publisher {
	if a.Config.NatsURL == "" {
		log.Printf("[DEBUG] No NATS URL configured, offer events disabled")
		return nil
	}
	publisher, err := natsjs.NewPublisher(a.Config.NatsURL, a.Config.NatsStream)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS (offer events disabled): %v", err)
		return nil
	}
	if err := publisher.EnsureStream(ctx); err != nil {
		log.Printf("[WARN] Failed to ensure NATS stream (offer events disabled): %v", err)
		publisher.Close()
		return nil
	}
	a.closers = append(a.closers, func() error { publisher.Close(); return nil })
	return publisher
}

func (a *App) connectFCM(ctx context.Context) *fcm.Client {
	if a.Config.FirebaseCredentials == "" {
		log.Printf("[DEBUG] No Firebase credentials configured, FCM disabled")
		return nil
	}
	client, err := fcm.NewClient(ctx, a.Config.FirebaseCredentials)
	if err != nil {
		log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		return nil
	}
	return client
}

// TopicResource returns the full projects/<p>/topics/<t> name Gmail watch needs.
func TopicResource(projectID, topic string) string {
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}
	if topic == "" {
		topic = defaultTopic
	}
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

// shortTopic extracts the short topic name from a full resource name.
func shortTopic(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}
	if topic == "" {
		topic = defaultTopic
	}
	return topic
}

func getterOr(fn func() string, value string) func() string {
	if fn != nil {
		return fn
	}
	return func() string { return value }
}
