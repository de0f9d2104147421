package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	accountdomain "locum-backend/internal/account/domain"
	accountrepo "locum-backend/internal/account/repository"
	ingestdomain "locum-backend/internal/ingest/domain"
	ingestusecase "locum-backend/internal/ingest/usecase"
	shiftusecase "locum-backend/internal/shift/usecase"
	syncdomain "locum-backend/internal/sync/domain"
	"locum-backend/pkg/backoff"
)

const (
	DefaultQuery          = "newer_than:30d"
	DefaultFallbackWindow = "newer_than:14d"
	inboxLabel            = "INBOX"
)

type Config struct {
	// FallbackWindow is appended to the stored query when the cursor expired.
	FallbackWindow string
	TopicName      string
	// WatchLabelName widens the watch to a user label with this name, if present.
	WatchLabelName string
}

type syncUsecase struct {
	accounts  accountrepo.AccountRepository
	tokens    TokenSource
	mail      syncdomain.MailProvider
	ingest    ingestusecase.IngestUsecase
	executor  *backoff.Executor
	extractor shiftusecase.ExtractionUsecase
	cfg       Config
}

// NewSyncUsecase wires the sync engine. extractor may be nil, which disables
// auto extraction.
func NewSyncUsecase(
	accounts accountrepo.AccountRepository,
	tokens TokenSource,
	mail syncdomain.MailProvider,
	ingest ingestusecase.IngestUsecase,
	executor *backoff.Executor,
	extractor shiftusecase.ExtractionUsecase,
	cfg Config,
) SyncUsecase {
	if cfg.FallbackWindow == "" {
		cfg.FallbackWindow = DefaultFallbackWindow
	}
	return &syncUsecase{
		accounts:  accounts,
		tokens:    tokens,
		mail:      mail,
		ingest:    ingest,
		executor:  executor,
		extractor: extractor,
		cfg:       cfg,
	}
}

func (u *syncUsecase) FullSync(ctx context.Context) (*SyncResult, error) {
	account, token, err := u.connect(ctx)
	if err != nil {
		return nil, err
	}

	query := account.GmailQuery
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	n, err := u.searchAndIngest(ctx, token, query)
	if err != nil {
		return nil, err
	}

	cursor, err := u.profileCursor(ctx, token)
	if err != nil {
		return nil, err
	}
	if cursor == "" {
		cursor = account.Cursor()
	} else if err := u.accounts.UpdateCursor(ctx, account.ID, cursor); err != nil {
		return nil, fmt.Errorf("save cursor: %w", err)
	}

	log.Printf("[Sync] full sync ingested %d messages (query %q)", n, query)
	return &SyncResult{Ingested: n, Cursor: cursor}, nil
}

func (u *syncUsecase) HandleNotification(ctx context.Context, historyID string) (*SyncResult, error) {
	account, err := u.accounts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil || historyID == "" {
		return &SyncResult{}, nil
	}

	token, err := u.tokens.AccessToken(ctx, account)
	if err != nil {
		return nil, err
	}

	start := account.Cursor()
	if start == "" {
		start = historyID
	}

	result := &SyncResult{Cursor: historyID}
	page, err := backoff.Do(ctx, u.executor, func(ctx context.Context) (*syncdomain.HistoryPage, error) {
		page, err := u.mail.ListHistory(ctx, token, start)
		if errors.Is(err, syncdomain.ErrCursorExpired) {
			return nil, backoff.Permanent(err)
		}
		return page, err
	})
	switch {
	case errors.Is(err, syncdomain.ErrCursorExpired):
		log.Printf("[Sync] cursor %s expired, falling back to recent search", start)
		result.FellBack = true
		query := strings.TrimSpace(account.GmailQuery + " " + u.cfg.FallbackWindow)
		if result.Ingested, err = u.searchAndIngest(ctx, token, query); err != nil {
			return nil, err
		}
		cursor, err := u.profileCursor(ctx, token)
		if err != nil {
			return nil, err
		}
		if cursor != "" {
			result.Cursor = cursor
		}
	case err != nil:
		return nil, fmt.Errorf("list history: %w", err)
	default:
		for _, id := range page.AddedMessageIDs {
			if err := u.fetchAndIngest(ctx, token, id); err != nil {
				return nil, err
			}
			result.Ingested++
		}
		if page.HistoryID != "" {
			result.Cursor = page.HistoryID
		}
	}

	if err := u.accounts.UpdateCursor(ctx, account.ID, result.Cursor); err != nil {
		return nil, fmt.Errorf("save cursor: %w", err)
	}
	log.Printf("[Sync] delta sync ingested %d messages, cursor %s", result.Ingested, result.Cursor)

	if account.AutoExtract && u.extractor != nil {
		summary, err := u.extractor.Run(ctx)
		if err != nil {
			log.Printf("[Sync] auto extraction failed: %v", err)
		} else {
			result.Extraction = summary
		}
	}
	return result, nil
}

func (u *syncUsecase) RenewWatch(ctx context.Context) (*WatchResult, error) {
	account, token, err := u.connect(ctx)
	if err != nil {
		return nil, err
	}

	labels, err := backoff.Do(ctx, u.executor, func(ctx context.Context) ([]syncdomain.Label, error) {
		return u.mail.ListLabels(ctx, token)
	})
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	labelIDs := []string{inboxLabel}
	if u.cfg.WatchLabelName != "" {
		for _, l := range labels {
			if strings.EqualFold(l.Name, u.cfg.WatchLabelName) {
				labelIDs = append(labelIDs, l.ID)
				break
			}
		}
	}

	watch, err := backoff.Do(ctx, u.executor, func(ctx context.Context) (*syncdomain.WatchResult, error) {
		return u.mail.RegisterWatch(ctx, token, u.cfg.TopicName, labelIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("register watch: %w", err)
	}

	if err := u.accounts.UpdateWatch(ctx, account.ID, watch.Expiration, watch.HistoryID); err != nil {
		return nil, fmt.Errorf("save watch: %w", err)
	}
	historyID := watch.HistoryID
	if historyID == "" {
		historyID = account.Cursor()
	}
	log.Printf("[Sync] watch registered on %v until %v", labelIDs, watch.Expiration)
	return &WatchResult{Expiration: watch.Expiration, HistoryID: historyID, LabelIDs: labelIDs}, nil
}

func (u *syncUsecase) Status(ctx context.Context) (*Status, error) {
	account, err := u.accounts.Get(ctx)
	if err != nil || account == nil {
		return nil, err
	}
	return &Status{
		Email:             account.Email,
		WatchExpiration:   account.WatchExpiration,
		LastHistoryID:     account.Cursor(),
		GmailQuery:        account.GmailQuery,
		AutoExtract:       account.AutoExtract,
		ExtractionRunning: account.ExtractionRunning,
	}, nil
}

func (u *syncUsecase) UpdateSettings(ctx context.Context, gmailQuery string, autoExtract bool) error {
	account, err := u.accounts.Get(ctx)
	if err != nil {
		return err
	}
	if account == nil {
		return accountdomain.ErrNoAccount
	}
	return u.accounts.UpdateSettings(ctx, account.ID, strings.TrimSpace(gmailQuery), autoExtract)
}

func (u *syncUsecase) connect(ctx context.Context) (*accountdomain.GmailAccount, string, error) {
	account, err := u.accounts.Get(ctx)
	if err != nil {
		return nil, "", err
	}
	if account == nil {
		return nil, "", accountdomain.ErrNoAccount
	}
	token, err := u.tokens.AccessToken(ctx, account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

func (u *syncUsecase) searchAndIngest(ctx context.Context, token, query string) (int, error) {
	refs, err := backoff.Do(ctx, u.executor, func(ctx context.Context) ([]syncdomain.MessageRef, error) {
		return u.mail.Search(ctx, token, query)
	})
	if err != nil {
		return 0, fmt.Errorf("search %q: %w", query, err)
	}

	n := 0
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if err := u.fetchAndIngest(ctx, token, ref.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (u *syncUsecase) fetchAndIngest(ctx context.Context, token, id string) error {
	msg, err := backoff.Do(ctx, u.executor, func(ctx context.Context) (*syncdomain.Message, error) {
		return u.mail.Fetch(ctx, token, id)
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", id, err)
	}
	return u.ingest.Ingest(ctx, ingestdomain.FromMailMessage(msg))
}

func (u *syncUsecase) profileCursor(ctx context.Context, token string) (string, error) {
	profile, err := backoff.Do(ctx, u.executor, func(ctx context.Context) (*syncdomain.Profile, error) {
		return u.mail.GetProfile(ctx, token)
	})
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return profile.HistoryID, nil
}
