package repository

import (
	"context"
	"time"

	"locum-backend/internal/account/domain"
)

// AccountRepository persists the connected mailbox and its sync state.
type AccountRepository interface {
	// Get returns the singleton account, or nil if none is connected.
	Get(ctx context.Context) (*domain.GmailAccount, error)
	// Upsert inserts or replaces the account keyed by email.
	Upsert(ctx context.Context, account *domain.GmailAccount) error
	SaveTokens(ctx context.Context, id string, tokens domain.StoredTokens) error
	UpdateCursor(ctx context.Context, id, historyID string) error
	UpdateWatch(ctx context.Context, id string, expiration *time.Time, historyID string) error
	UpdateSettings(ctx context.Context, id, gmailQuery string, autoExtract bool) error
	// TryAcquireExtraction sets extraction_running for owner when it is
	// false, or when the previous holder last refreshed before staleBefore.
	// It reports whether owner now holds the lock.
	TryAcquireExtraction(ctx context.Context, id, owner string, staleBefore time.Time) (bool, error)
	// RefreshExtraction bumps extraction_started_at while owner still holds
	// the lock, and reports false once it does not.
	RefreshExtraction(ctx context.Context, id, owner string) (bool, error)
	// ReleaseExtraction clears the lock only if owner still holds it.
	ReleaseExtraction(ctx context.Context, id, owner string) error
}
