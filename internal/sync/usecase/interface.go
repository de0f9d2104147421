package usecase

import (
	"context"
	"time"

	accountdomain "locum-backend/internal/account/domain"
	shiftusecase "locum-backend/internal/shift/usecase"
)

// SyncResult summarizes one sync invocation.
type SyncResult struct {
	Ingested int    `json:"ingested"`
	Cursor   string `json:"history_id,omitempty"`
	// FellBack is set when an expired cursor forced a recency search.
	FellBack   bool                            `json:"fell_back,omitempty"`
	Extraction *shiftusecase.ExtractionSummary `json:"extraction,omitempty"`
}

type WatchResult struct {
	Expiration *time.Time `json:"expiration"`
	HistoryID  string     `json:"history_id"`
	LabelIDs   []string   `json:"label_ids"`
}

// Status is the connected mailbox as shown to the dashboard.
type Status struct {
	Email             string     `json:"google_email"`
	WatchExpiration   *time.Time `json:"watch_expiration"`
	LastHistoryID     string     `json:"last_history_id"`
	GmailQuery        string     `json:"gmail_query"`
	AutoExtract       bool       `json:"auto_extract"`
	ExtractionRunning bool       `json:"extraction_running"`
}

// SyncUsecase keeps the raw message store in step with the mailbox.
type SyncUsecase interface {
	// FullSync searches with the stored query and records the current cursor.
	FullSync(ctx context.Context) (*SyncResult, error)
	// HandleNotification replays history since the stored cursor. A missing
	// account or empty historyID is a no-op.
	HandleNotification(ctx context.Context, historyID string) (*SyncResult, error)
	RenewWatch(ctx context.Context) (*WatchResult, error)
	// Status returns nil when no mailbox is connected.
	Status(ctx context.Context) (*Status, error)
	UpdateSettings(ctx context.Context, gmailQuery string, autoExtract bool) error
}

// TokenSource yields a fresh access token for the account.
type TokenSource interface {
	AccessToken(ctx context.Context, account *accountdomain.GmailAccount) (string, error)
}
