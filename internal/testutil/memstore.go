// Package testutil holds in-memory implementations of the repository
// interfaces and a scriptable mail provider.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	accountdomain "locum-backend/internal/account/domain"
	accountrepo "locum-backend/internal/account/repository"
	devicerepo "locum-backend/internal/device/repository"
	ingestdomain "locum-backend/internal/ingest/domain"
	ingestrepo "locum-backend/internal/ingest/repository"
	shiftdomain "locum-backend/internal/shift/domain"
	shiftrepo "locum-backend/internal/shift/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Accounts is an in-memory AccountRepository.
type Accounts struct {
	mu       sync.Mutex
	accounts []*accountdomain.GmailAccount
	// Releases counts ReleaseExtraction calls.
	Releases int
}

var _ accountrepo.AccountRepository = (*Accounts)(nil)

func NewAccounts(seed ...*accountdomain.GmailAccount) *Accounts {
	a := &Accounts{}
	for _, acc := range seed {
		cp := *acc
		if cp.ID == "" {
			cp.ID = uuid.New().String()
		}
		a.accounts = append(a.accounts, &cp)
	}
	return a
}

func (a *Accounts) Get(ctx context.Context) (*accountdomain.GmailAccount, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.accounts) == 0 {
		return nil, nil
	}
	cp := *a.accounts[0]
	return &cp, nil
}

func (a *Accounts) Upsert(ctx context.Context, account *accountdomain.GmailAccount) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, acc := range a.accounts {
		if acc.Email == account.Email {
			acc.AccessToken = account.AccessToken
			acc.RefreshToken = account.RefreshToken
			acc.TokenExpiry = account.TokenExpiry
			acc.UpdatedAt = time.Now()
			return nil
		}
	}
	cp := *account
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	a.accounts = append(a.accounts, &cp)
	return nil
}

func (a *Accounts) SaveTokens(ctx context.Context, id string, tokens accountdomain.StoredTokens) error {
	return a.with(id, func(acc *accountdomain.GmailAccount) {
		acc.AccessToken = tokens.AccessToken
		acc.RefreshToken = tokens.RefreshToken
		acc.TokenExpiry = tokens.Expiry
	})
}

func (a *Accounts) UpdateCursor(ctx context.Context, id, historyID string) error {
	return a.with(id, func(acc *accountdomain.GmailAccount) {
		acc.LastHistoryID = &historyID
	})
}

func (a *Accounts) UpdateWatch(ctx context.Context, id string, expiration *time.Time, historyID string) error {
	return a.with(id, func(acc *accountdomain.GmailAccount) {
		acc.WatchExpiration = expiration
		if historyID != "" {
			acc.LastHistoryID = &historyID
		}
	})
}

func (a *Accounts) UpdateSettings(ctx context.Context, id, gmailQuery string, autoExtract bool) error {
	return a.with(id, func(acc *accountdomain.GmailAccount) {
		acc.GmailQuery = gmailQuery
		acc.AutoExtract = autoExtract
	})
}

func (a *Accounts) TryAcquireExtraction(ctx context.Context, id, owner string, staleBefore time.Time) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.find(id)
	if acc == nil {
		return false, nil
	}
	if acc.ExtractionRunning && acc.ExtractionStartedAt != nil && !acc.ExtractionStartedAt.Before(staleBefore) {
		return false, nil
	}
	now := time.Now()
	acc.ExtractionRunning = true
	acc.ExtractionStartedAt = &now
	acc.ExtractionOwner = owner
	return true, nil
}

func (a *Accounts) RefreshExtraction(ctx context.Context, id, owner string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.find(id)
	if acc == nil || !acc.ExtractionRunning || acc.ExtractionOwner != owner {
		return false, nil
	}
	now := time.Now()
	acc.ExtractionStartedAt = &now
	return true, nil
}

func (a *Accounts) ReleaseExtraction(ctx context.Context, id, owner string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Releases++
	acc := a.find(id)
	if acc == nil || acc.ExtractionOwner != owner {
		return nil
	}
	acc.ExtractionRunning = false
	acc.ExtractionStartedAt = nil
	acc.ExtractionOwner = ""
	return nil
}

func (a *Accounts) with(id string, fn func(*accountdomain.GmailAccount)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.find(id)
	if acc == nil {
		return fmt.Errorf("account %s: %w", id, gorm.ErrRecordNotFound)
	}
	fn(acc)
	acc.UpdatedAt = time.Now()
	return nil
}

func (a *Accounts) find(id string) *accountdomain.GmailAccount {
	for _, acc := range a.accounts {
		if acc.ID == id {
			return acc
		}
	}
	return nil
}

// RawMessages is an in-memory RawMessageRepository.
type RawMessages struct {
	mu   sync.Mutex
	rows []*ingestdomain.RawMessage
	// FailUpsert, when set, is returned by Upsert.
	FailUpsert error
}

var _ ingestrepo.RawMessageRepository = (*RawMessages)(nil)

func NewRawMessages() *RawMessages {
	return &RawMessages{}
}

func (r *RawMessages) Upsert(ctx context.Context, msg *ingestdomain.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpsert != nil {
		return r.FailUpsert
	}
	for _, row := range r.rows {
		if row.Source == msg.Source && row.ExternalID == msg.ExternalID {
			if !msg.ReceivedAtEstimated {
				row.ReceivedAt = msg.ReceivedAt
			}
			row.ContentText = msg.ContentText
			row.ContentMeta = msg.ContentMeta
			row.ContentHash = msg.ContentHash
			row.UpdatedAt = time.Now()
			msg.ID = row.ID
			return nil
		}
	}
	cp := *msg
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	msg.ID = cp.ID
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *RawMessages) FindByID(ctx context.Context, id string) (*ingestdomain.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *RawMessages) FindUnextracted(ctx context.Context, limit int) ([]*ingestdomain.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ingestdomain.RawMessage
	for _, row := range r.rows {
		if !row.Extracted {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExtractAttempts != out[j].ExtractAttempts {
			return out[i].ExtractAttempts < out[j].ExtractAttempts
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RawMessages) MarkExtracted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Extracted = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *RawMessages) RecordExtractFailure(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.ExtractAttempts++
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *RawMessages) CountBySource(ctx context.Context) (map[ingestdomain.Source]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[ingestdomain.Source]int64)
	for _, row := range r.rows {
		counts[row.Source]++
	}
	return counts, nil
}

// All returns copies of every stored row in insertion order.
func (r *RawMessages) All() []ingestdomain.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ingestdomain.RawMessage, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out
}

// Offers is an in-memory OfferRepository.
type Offers struct {
	mu   sync.Mutex
	rows []*shiftdomain.ShiftOffer
}

var _ shiftrepo.OfferRepository = (*Offers)(nil)

func NewOffers() *Offers {
	return &Offers{}
}

func (o *Offers) FindByFingerprint(ctx context.Context, fingerprint string) (*shiftdomain.ShiftOffer, error) {
	return o.first(func(s *shiftdomain.ShiftOffer) bool { return s.Fingerprint == fingerprint }), nil
}

func (o *Offers) FindByID(ctx context.Context, id string) (*shiftdomain.ShiftOffer, error) {
	return o.first(func(s *shiftdomain.ShiftOffer) bool { return s.ID == id }), nil
}

func (o *Offers) first(match func(*shiftdomain.ShiftOffer) bool) *shiftdomain.ShiftOffer {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, row := range o.rows {
		if match(row) {
			return cloneOffer(row)
		}
	}
	return nil
}

func (o *Offers) Create(ctx context.Context, offer *shiftdomain.ShiftOffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, row := range o.rows {
		if row.Fingerprint == offer.Fingerprint {
			return fmt.Errorf("duplicate fingerprint %q", offer.Fingerprint)
		}
	}
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = offer.CreatedAt
	o.rows = append(o.rows, cloneOffer(offer))
	return nil
}

func (o *Offers) UpdateContent(ctx context.Context, offer *shiftdomain.ShiftOffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, row := range o.rows {
		if row.ID == offer.ID {
			offer.UpdatedAt = time.Now()
			next := cloneOffer(offer)
			next.Status = row.Status
			next.CreatedAt = row.CreatedAt
			next.Fingerprint = row.Fingerprint
			o.rows[i] = next
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (o *Offers) List(ctx context.Context, status *shiftdomain.OfferStatus, limit int) ([]*shiftdomain.ShiftOffer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*shiftdomain.ShiftOffer
	for _, row := range o.rows {
		if status == nil || row.Status == *status {
			out = append(out, cloneOffer(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *Offers) UpdateStatus(ctx context.Context, id string, status shiftdomain.OfferStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, row := range o.rows {
		if row.ID == id {
			row.Status = status
			row.UpdatedAt = time.Now()
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// All returns copies of every stored offer in insertion order.
func (o *Offers) All() []*shiftdomain.ShiftOffer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*shiftdomain.ShiftOffer, 0, len(o.rows))
	for _, row := range o.rows {
		out = append(out, cloneOffer(row))
	}
	return out
}

func cloneOffer(s *shiftdomain.ShiftOffer) *shiftdomain.ShiftOffer {
	cp := *s
	cp.SourceRawIDs = append(shiftdomain.StringSet(nil), s.SourceRawIDs...)
	return &cp
}

// Templates is an in-memory TemplateRepository.
type Templates struct {
	mu   sync.Mutex
	rows []*shiftdomain.BookingTemplate
}

var _ shiftrepo.TemplateRepository = (*Templates)(nil)

func NewTemplates(seed ...*shiftdomain.BookingTemplate) *Templates {
	t := &Templates{}
	for _, tpl := range seed {
		_ = t.Upsert(context.Background(), tpl)
	}
	return t
}

func (t *Templates) FindForChannel(ctx context.Context, channel shiftdomain.BookingChannel, agencies ...string) ([]*shiftdomain.BookingTemplate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*shiftdomain.BookingTemplate
	for _, row := range t.rows {
		if row.Channel != channel {
			continue
		}
		for _, a := range agencies {
			if row.Agency == a {
				cp := *row
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (t *Templates) List(ctx context.Context) ([]*shiftdomain.BookingTemplate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*shiftdomain.BookingTemplate, 0, len(t.rows))
	for _, row := range t.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (t *Templates) Upsert(ctx context.Context, tpl *shiftdomain.BookingTemplate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range t.rows {
		if row.Agency == tpl.Agency && row.Channel == tpl.Channel {
			row.SubjectTemplate = tpl.SubjectTemplate
			row.BodyTemplate = tpl.BodyTemplate
			row.UpdatedAt = time.Now()
			tpl.ID = row.ID
			return nil
		}
	}
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	cp := *tpl
	t.rows = append(t.rows, &cp)
	return nil
}

// Devices is an in-memory DeviceRepository.
type Devices struct {
	mu     sync.Mutex
	tokens []string
}

var _ devicerepo.DeviceRepository = (*Devices)(nil)

func NewDevices(tokens ...string) *Devices {
	return &Devices{tokens: append([]string(nil), tokens...)}
}

func (d *Devices) Save(ctx context.Context, token, deviceInfo string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tokens {
		if t == token {
			return nil
		}
	}
	d.tokens = append(d.tokens, token)
	return nil
}

func (d *Devices) ListTokens(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...), nil
}

func (d *Devices) Delete(ctx context.Context, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, t := range d.tokens {
		if t == token {
			d.tokens = append(d.tokens[:i], d.tokens[i+1:]...)
			return nil
		}
	}
	return nil
}
