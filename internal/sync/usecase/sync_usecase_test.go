package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	accountdomain "locum-backend/internal/account/domain"
	ingestusecase "locum-backend/internal/ingest/usecase"
	shiftusecase "locum-backend/internal/shift/usecase"
	syncdomain "locum-backend/internal/sync/domain"
	"locum-backend/internal/testutil"
	"locum-backend/pkg/backoff"
)

type staticToken string

func (s staticToken) AccessToken(context.Context, *accountdomain.GmailAccount) (string, error) {
	return string(s), nil
}

type countingExtractor struct {
	runs int
	err  error
}

func (c *countingExtractor) Run(context.Context) (*shiftusecase.ExtractionSummary, error) {
	c.runs++
	if c.err != nil {
		return nil, c.err
	}
	return &shiftusecase.ExtractionSummary{Processed: 1}, nil
}

type syncFixture struct {
	accounts  *testutil.Accounts
	raws      *testutil.RawMessages
	mail      *testutil.Mailbox
	extractor *countingExtractor
	uc        SyncUsecase
}

func newSyncFixture(t *testing.T, account *accountdomain.GmailAccount) *syncFixture {
	t.Helper()
	f := &syncFixture{
		raws: testutil.NewRawMessages(),
		mail: &testutil.Mailbox{
			Messages: map[string]*syncdomain.Message{},
			Profile:  syncdomain.Profile{EmailAddress: "me@example.com", HistoryID: "9000"},
		},
		extractor: &countingExtractor{},
	}
	if account != nil {
		f.accounts = testutil.NewAccounts(account)
	} else {
		f.accounts = testutil.NewAccounts()
	}
	for _, id := range []string{"m1", "m2", "m3"} {
		f.mail.Messages[id] = &syncdomain.Message{ID: id, Subject: "Shift " + id}
	}
	f.uc = NewSyncUsecase(
		f.accounts, staticToken("access-1"), f.mail,
		ingestusecase.NewIngestUsecase(f.raws, time.UTC),
		backoff.New(0, time.Millisecond), f.extractor,
		Config{TopicName: "projects/p/topics/gmail", WatchLabelName: "Locum"},
	)
	return f
}

func cursorPtr(s string) *string { return &s }

func (f *syncFixture) cursor(t *testing.T) string {
	t.Helper()
	acc, _ := f.accounts.Get(context.Background())
	return acc.Cursor()
}

func TestHandleNotification_IngestsDistinctAddedMessages(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com", LastHistoryID: cursorPtr("100")})
	f.mail.HistoryFn = func(cursor string) (*syncdomain.HistoryPage, error) {
		return &syncdomain.HistoryPage{AddedMessageIDs: []string{"m1", "m2"}, HistoryID: "150"}, nil
	}

	res, err := f.uc.HandleNotification(context.Background(), "160")
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if !reflect.DeepEqual(f.mail.HistoryFrom, []string{"100"}) {
		t.Errorf("history replayed from %v, want stored cursor", f.mail.HistoryFrom)
	}
	if res.Ingested != 2 || len(f.raws.All()) != 2 {
		t.Errorf("ingested = %d, stored = %d", res.Ingested, len(f.raws.All()))
	}
	if got := f.cursor(t); got != "150" {
		t.Errorf("cursor = %q, want history response cursor", got)
	}
}

func TestHandleNotification_UsesAnnouncedCursorWhenNoneStored(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com"})

	if _, err := f.uc.HandleNotification(context.Background(), "777"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.mail.HistoryFrom, []string{"777"}) {
		t.Errorf("history replayed from %v", f.mail.HistoryFrom)
	}
	if got := f.cursor(t); got != "777" {
		t.Errorf("cursor = %q, want announced 777", got)
	}
}

func TestHandleNotification_ExpiredCursorFallsBack(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{
		ID: "a", Email: "me@example.com", LastHistoryID: cursorPtr("1"), GmailQuery: "from:agency",
	})
	f.mail.HistoryFn = func(string) (*syncdomain.HistoryPage, error) {
		return nil, fmt.Errorf("%w: 404", syncdomain.ErrCursorExpired)
	}
	f.mail.SearchRefs = []syncdomain.MessageRef{{ID: "m1"}, {ID: "m3"}}

	res, err := f.uc.HandleNotification(context.Background(), "500")
	if err != nil {
		t.Fatalf("expired cursor must not surface: %v", err)
	}
	if !res.FellBack || res.Ingested != 2 {
		t.Errorf("result = %+v", res)
	}
	if !reflect.DeepEqual(f.mail.Queries, []string{"from:agency newer_than:14d"}) {
		t.Errorf("queries = %v", f.mail.Queries)
	}
	if len(f.mail.HistoryFrom) != 1 {
		t.Errorf("expired cursor retried %d times", len(f.mail.HistoryFrom))
	}
	if got := f.cursor(t); got != "9000" {
		t.Errorf("cursor = %q, want fresh profile cursor", got)
	}
}

func TestHandleNotification_FetchFailureIsFatal(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com", LastHistoryID: cursorPtr("100")})
	f.mail.HistoryFn = func(string) (*syncdomain.HistoryPage, error) {
		return &syncdomain.HistoryPage{AddedMessageIDs: []string{"m1", "missing", "m2"}, HistoryID: "150"}, nil
	}

	if _, err := f.uc.HandleNotification(context.Background(), "160"); err == nil {
		t.Fatal("expected fetch failure to surface")
	}
	if n := len(f.raws.All()); n != 1 {
		t.Errorf("stored = %d, want the one ingested before the failure", n)
	}
	if got := f.cursor(t); got != "100" {
		t.Errorf("cursor advanced to %q after failure", got)
	}
}

func TestHandleNotification_NoOps(t *testing.T) {
	f := newSyncFixture(t, nil)
	res, err := f.uc.HandleNotification(context.Background(), "1")
	if err != nil || res.Ingested != 0 {
		t.Errorf("no account: %+v %v", res, err)
	}

	f = newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com"})
	if _, err := f.uc.HandleNotification(context.Background(), ""); err != nil {
		t.Errorf("empty history id: %v", err)
	}
	if len(f.mail.HistoryFrom) != 0 {
		t.Error("history listed for empty notification")
	}
}

func TestHandleNotification_AutoExtract(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com", AutoExtract: true})
	f.extractor.err = errors.New("model offline")

	res, err := f.uc.HandleNotification(context.Background(), "10")
	if err != nil {
		t.Fatalf("extraction failure must not fail the sync: %v", err)
	}
	if f.extractor.runs != 1 || res.Extraction != nil {
		t.Errorf("runs = %d, extraction = %+v", f.extractor.runs, res.Extraction)
	}
}

func TestFullSync(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com"})
	f.mail.SearchRefs = []syncdomain.MessageRef{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}

	res, err := f.uc.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync: %v", err)
	}
	if res.Ingested != 3 || res.Cursor != "9000" {
		t.Errorf("result = %+v", res)
	}
	if !reflect.DeepEqual(f.mail.Queries, []string{DefaultQuery}) {
		t.Errorf("queries = %v", f.mail.Queries)
	}

	// Second run re-ingests without duplicating.
	if _, err := f.uc.FullSync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(f.raws.All()); n != 3 {
		t.Errorf("stored = %d after resync, want 3", n)
	}
}

func TestFullSync_NoAccount(t *testing.T) {
	f := newSyncFixture(t, nil)
	if _, err := f.uc.FullSync(context.Background()); !errors.Is(err, accountdomain.ErrNoAccount) {
		t.Errorf("err = %v, want ErrNoAccount", err)
	}
}

func TestRenewWatch(t *testing.T) {
	exp := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		labels []syncdomain.Label
		want   []string
	}{
		{"inbox only", []syncdomain.Label{{ID: "Label_1", Name: "Receipts"}}, []string{"INBOX"}},
		{"with locum label", []syncdomain.Label{{ID: "Label_7", Name: "locum"}}, []string{"INBOX", "Label_7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com"})
			f.mail.Labels = tt.labels
			f.mail.Watch = syncdomain.WatchResult{Expiration: &exp, HistoryID: "321"}

			res, err := f.uc.RenewWatch(context.Background())
			if err != nil {
				t.Fatalf("RenewWatch: %v", err)
			}
			if !reflect.DeepEqual(f.mail.WatchLabels, tt.want) {
				t.Errorf("labels = %v, want %v", f.mail.WatchLabels, tt.want)
			}
			acc, _ := f.accounts.Get(context.Background())
			if acc.WatchExpiration == nil || !acc.WatchExpiration.Equal(exp) || acc.Cursor() != "321" {
				t.Errorf("stored watch = %v / %q", acc.WatchExpiration, acc.Cursor())
			}
			if res.HistoryID != "321" {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestSettingsAndStatus(t *testing.T) {
	f := newSyncFixture(t, &accountdomain.GmailAccount{ID: "a", Email: "me@example.com"})
	if err := f.uc.UpdateSettings(context.Background(), "  label:locum ", true); err != nil {
		t.Fatal(err)
	}
	st, err := f.uc.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.GmailQuery != "label:locum" || !st.AutoExtract || st.Email != "me@example.com" {
		t.Errorf("status = %+v", st)
	}
}
