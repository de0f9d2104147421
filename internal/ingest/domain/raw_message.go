package domain

import "time"

// Source identifies where a raw message came from.
type Source string

const (
	SourceGmail    Source = "gmail"
	SourceWhatsApp Source = "whatsapp"
)

// ContentMeta is the fixed-shape metadata attached to a raw message.
// Mailbox messages fill Subject/From/Date; chat messages fill Author/IsSystem.
type ContentMeta struct {
	Subject  string  `json:"subject,omitempty"`
	From     string  `json:"from,omitempty"`
	Date     string  `json:"date,omitempty"`
	Author   *string `json:"author,omitempty"`
	IsSystem bool    `json:"is_system,omitempty"`
}

// RawMessage is one ingested unit awaiting (or done with) extraction.
type RawMessage struct {
	ID          string      `json:"id" gorm:"primaryKey"`
	Source      Source      `json:"source" gorm:"type:varchar(32);not null;uniqueIndex:idx_raw_source_external"`
	ExternalID  string      `json:"external_id" gorm:"not null;uniqueIndex:idx_raw_source_external"`
	ReceivedAt  time.Time   `json:"received_at" gorm:"index"`
	ContentText string      `json:"content_text" gorm:"type:text"`
	ContentMeta ContentMeta `json:"content_meta" gorm:"serializer:json;type:jsonb"`
	ContentHash string      `json:"content_hash" gorm:"type:varchar(64);index"`
	Extracted   bool        `json:"extracted" gorm:"default:false;index"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// ExtractAttempts counts failed extraction attempts.
	ExtractAttempts int `json:"extract_attempts" gorm:"default:0;not null"`

	// ReceivedAtEstimated marks ReceivedAt as the ingest time rather than a
	// source timestamp; an existing row keeps its stored value.
	ReceivedAtEstimated bool `json:"-" gorm:"-"`
}

func (RawMessage) TableName() string {
	return "raw_items"
}

// CanonicalMessage is what every source is normalized to before ingestion.
type CanonicalMessage struct {
	Source     Source
	ExternalID string
	ReceivedAt *time.Time
	Body       string
	Meta       ContentMeta
}
