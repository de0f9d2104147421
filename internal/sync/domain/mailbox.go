package domain

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// ErrCursorExpired means the provider can no longer replay history from the
// requested cursor. Callers fall back to a search-based sync.
var ErrCursorExpired = errors.New("history cursor expired or not found")

// MessageRef is a search hit.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MessagePart is either a leaf carrying base64url Data or a branch with Parts.
type MessagePart struct {
	MimeType string
	Data     string
	Parts    []MessagePart
}

// Text decodes leaf data and concatenates descendant leaves in order with "\n".
func (p MessagePart) Text() string {
	if p.Data != "" {
		return decodeBase64URL(p.Data)
	}
	var texts []string
	for _, child := range p.Parts {
		if t := child.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n")
}

func decodeBase64URL(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}

// Message is a fully fetched mailbox message.
type Message struct {
	ID           string
	ThreadID     string
	Subject      string
	From         string
	Date         string
	InternalDate *time.Time
	Payload      MessagePart
}

// Body returns the decoded text of the payload tree.
func (m *Message) Body() string {
	return m.Payload.Text()
}

// HistoryPage is the result of a history replay.
type HistoryPage struct {
	// AddedMessageIDs are ids referenced by message-added events, deduplicated, in first-seen order.
	AddedMessageIDs []string
	// HistoryID is the provider cursor after the replay; may be empty.
	HistoryID string
}

type Profile struct {
	EmailAddress string
	HistoryID    string
}

type Label struct {
	ID   string
	Name string
}

type WatchResult struct {
	Expiration *time.Time
	HistoryID  string
}

// MailProvider is the capability surface over the mailbox. Each call is
// authorized with a bearer access token.
type MailProvider interface {
	Search(ctx context.Context, accessToken, query string) ([]MessageRef, error)
	Fetch(ctx context.Context, accessToken, id string) (*Message, error)
	ListHistory(ctx context.Context, accessToken, sinceCursor string) (*HistoryPage, error)
	GetProfile(ctx context.Context, accessToken string) (*Profile, error)
	ListLabels(ctx context.Context, accessToken string) ([]Label, error)
	RegisterWatch(ctx context.Context, accessToken, topicName string, labelIDs []string) (*WatchResult, error)
}
