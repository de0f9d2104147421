package testutil

import (
	"context"
	"fmt"
	"sync"

	syncdomain "locum-backend/internal/sync/domain"
)

// Mailbox is a scriptable MailProvider. Unset hooks fall back to the
// Messages map and the static fields.
type Mailbox struct {
	mu sync.Mutex

	Messages   map[string]*syncdomain.Message
	SearchRefs []syncdomain.MessageRef
	Profile    syncdomain.Profile
	Labels     []syncdomain.Label
	Watch      syncdomain.WatchResult

	HistoryFn func(cursor string) (*syncdomain.HistoryPage, error)
	FetchFn   func(id string) (*syncdomain.Message, error)

	// Recorded calls.
	Queries      []string
	Fetched      []string
	HistoryFrom  []string
	WatchLabels  []string
	AccessTokens []string
}

var _ syncdomain.MailProvider = (*Mailbox)(nil)

func (m *Mailbox) record(token string) {
	m.AccessTokens = append(m.AccessTokens, token)
}

func (m *Mailbox) Search(ctx context.Context, accessToken, query string) ([]syncdomain.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(accessToken)
	m.Queries = append(m.Queries, query)
	return append([]syncdomain.MessageRef(nil), m.SearchRefs...), nil
}

func (m *Mailbox) Fetch(ctx context.Context, accessToken, id string) (*syncdomain.Message, error) {
	m.mu.Lock()
	m.record(accessToken)
	m.Fetched = append(m.Fetched, id)
	fn := m.FetchFn
	msg, ok := m.Messages[id]
	m.mu.Unlock()

	if fn != nil {
		return fn(id)
	}
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (m *Mailbox) ListHistory(ctx context.Context, accessToken, sinceCursor string) (*syncdomain.HistoryPage, error) {
	m.mu.Lock()
	m.record(accessToken)
	m.HistoryFrom = append(m.HistoryFrom, sinceCursor)
	fn := m.HistoryFn
	m.mu.Unlock()

	if fn == nil {
		return &syncdomain.HistoryPage{}, nil
	}
	return fn(sinceCursor)
}

func (m *Mailbox) GetProfile(ctx context.Context, accessToken string) (*syncdomain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(accessToken)
	p := m.Profile
	return &p, nil
}

func (m *Mailbox) ListLabels(ctx context.Context, accessToken string) ([]syncdomain.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(accessToken)
	return append([]syncdomain.Label(nil), m.Labels...), nil
}

func (m *Mailbox) RegisterWatch(ctx context.Context, accessToken, topicName string, labelIDs []string) (*syncdomain.WatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(accessToken)
	m.WatchLabels = append([]string(nil), labelIDs...)
	w := m.Watch
	return &w, nil
}
