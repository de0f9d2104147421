package domain

import (
	"errors"
	"time"
)

// ErrNoAccount is returned when no mailbox has been connected yet.
var ErrNoAccount = errors.New("no connected gmail account")

// GmailAccount is the singleton connected mailbox. It carries both the
// encrypted credential and the sync state for that mailbox.
type GmailAccount struct {
	ID    string `json:"id" gorm:"primaryKey"`
	Email string `json:"google_email" gorm:"uniqueIndex;not null"`

	// Encrypted; opaque outside the token manager.
	AccessToken  string     `json:"-" gorm:"type:text;not null"`
	RefreshToken *string    `json:"-" gorm:"type:text"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`

	LastHistoryID   *string    `json:"last_history_id,omitempty"`
	WatchExpiration *time.Time `json:"watch_expiration,omitempty"`
	GmailQuery      string     `json:"gmail_query" gorm:"type:text"`
	AutoExtract     bool       `json:"auto_extract" gorm:"default:false"`

	// Advisory lock over extraction runs.
	ExtractionRunning   bool       `json:"extraction_running" gorm:"default:false;not null"`
	ExtractionStartedAt *time.Time `json:"extraction_started_at,omitempty"`
	ExtractionOwner     string     `json:"-" gorm:"type:varchar(64)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GmailAccount) TableName() string {
	return "gmail_accounts"
}

// Cursor returns the stored history cursor or "".
func (a *GmailAccount) Cursor() string {
	if a == nil || a.LastHistoryID == nil {
		return ""
	}
	return *a.LastHistoryID
}

// StoredTokens is the encrypted credential as persisted.
type StoredTokens struct {
	AccessToken  string
	RefreshToken *string
	Expiry       *time.Time
}

func (a *GmailAccount) StoredTokens() StoredTokens {
	return StoredTokens{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		Expiry:       a.TokenExpiry,
	}
}
