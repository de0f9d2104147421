package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	accountdomain "locum-backend/internal/account/domain"
	ingestdomain "locum-backend/internal/ingest/domain"
	"locum-backend/internal/shift/domain"
	"locum-backend/internal/testutil"
	"locum-backend/pkg/ai"
	"locum-backend/pkg/backoff"
)

type extractorFunc func(ctx context.Context, text string) (*ai.ExtractionResult, error)

func (f extractorFunc) ExtractOffers(ctx context.Context, text string) (*ai.ExtractionResult, error) {
	return f(ctx, text)
}

type failingMarks struct {
	*testutil.RawMessages
}

func (failingMarks) MarkExtracted(context.Context, string) error {
	return errors.New("database is down")
}

type recordingNotifier struct {
	offers []*domain.ShiftOffer
}

func (r *recordingNotifier) NotifyNewOffers(_ context.Context, offers []*domain.ShiftOffer) {
	r.offers = append(r.offers, offers...)
}

type extractionFixture struct {
	accounts *testutil.Accounts
	raws     *testutil.RawMessages
	offers   *testutil.Offers
	notifier *recordingNotifier
	account  *accountdomain.GmailAccount
}

func newExtractionFixture(t *testing.T, bodies ...string) *extractionFixture {
	t.Helper()
	f := &extractionFixture{
		accounts: testutil.NewAccounts(&accountdomain.GmailAccount{ID: "acc-1", Email: "me@example.com"}),
		raws:     testutil.NewRawMessages(),
		offers:   testutil.NewOffers(),
		notifier: &recordingNotifier{},
	}
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, body := range bodies {
		err := f.raws.Upsert(context.Background(), &ingestdomain.RawMessage{
			Source:      ingestdomain.SourceGmail,
			ExternalID:  body,
			ReceivedAt:  base.Add(time.Duration(i) * time.Minute),
			ContentText: body,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func (f *extractionFixture) usecase(extractor ai.OfferExtractor) ExtractionUsecase {
	return NewExtractionUsecase(
		f.accounts, f.raws, extractor, NewMergeEngine(f.offers),
		backoff.New(0, time.Millisecond), nil, f.notifier, ExtractionConfig{},
	)
}

func (f *extractionFixture) running(t *testing.T) bool {
	t.Helper()
	acc, _ := f.accounts.Get(context.Background())
	return acc.ExtractionRunning
}

func dated(date string, conf float64) ai.Offer {
	return ai.Offer{Date: &date, BookingChannel: "email", Confidence: conf}
}

func TestRun_MergesOffersAndMarksEveryRecord(t *testing.T) {
	f := newExtractionFixture(t, "offer A", "newsletter", "offer A again")
	uc := f.usecase(extractorFunc(func(_ context.Context, text string) (*ai.ExtractionResult, error) {
		switch {
		case text == "newsletter":
			return &ai.ExtractionResult{}, nil
		case len(text) >= 7 && text[:7] == "offer A":
			return &ai.ExtractionResult{Offers: []ai.Offer{dated("2024-05-14", 0.7)}}, nil
		}
		t.Errorf("unexpected text %q", text)
		return &ai.ExtractionResult{}, nil
	}))

	summary, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 3 || summary.OffersCreated != 1 || summary.OffersUpdated != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if left, _ := f.raws.FindUnextracted(context.Background(), 10); len(left) != 0 {
		t.Errorf("unextracted = %d, want 0", len(left))
	}
	if len(f.notifier.offers) != 1 {
		t.Errorf("notified %d offers, want 1", len(f.notifier.offers))
	}
	if f.running(t) {
		t.Error("lock still held after run")
	}
}

func TestRun_DiscardsDatelessOffers(t *testing.T) {
	f := newExtractionFixture(t, "vague message")
	uc := f.usecase(extractorFunc(func(context.Context, string) (*ai.ExtractionResult, error) {
		bad := "next Tuesday"
		return &ai.ExtractionResult{Offers: []ai.Offer{
			{BookingChannel: "unknown", Confidence: 0.3},
			{Date: &bad, BookingChannel: "unknown", Confidence: 0.3},
		}}, nil
	}))

	summary, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("processed = %d, want 1", summary.Processed)
	}
	if n := len(f.offers.All()); n != 0 {
		t.Errorf("stored offers = %d, want 0", n)
	}
}

func TestRun_SchemaViolationFailsOnlyThatItem(t *testing.T) {
	f := newExtractionFixture(t, "garbled", "good")
	calls := 0
	uc := f.usecase(extractorFunc(func(_ context.Context, text string) (*ai.ExtractionResult, error) {
		calls++
		if text == "garbled" {
			return nil, ai.ErrSchemaViolation
		}
		return &ai.ExtractionResult{Offers: []ai.Offer{dated("2024-06-01", 0.8)}}, nil
	}))

	summary, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if calls != 2 {
		t.Errorf("extractor calls = %d, want 2", calls)
	}
	left, _ := f.raws.FindUnextracted(context.Background(), 10)
	if len(left) != 1 || left[0].ContentText != "garbled" {
		t.Errorf("unextracted = %+v", left)
	}
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	f := newExtractionFixture(t, "offer")
	if ok, _ := f.accounts.TryAcquireExtraction(context.Background(), "acc-1", "other-worker", time.Now().Add(-time.Hour)); !ok {
		t.Fatal("could not pre-acquire lock")
	}
	uc := f.usecase(extractorFunc(func(context.Context, string) (*ai.ExtractionResult, error) {
		t.Error("extractor must not run while skipped")
		return nil, nil
	}))

	summary, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Skipped || summary.Processed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if !f.running(t) {
		t.Error("skipped run released a lock it did not hold")
	}
}

func TestRun_ConcurrentInvocationsSingleFlight(t *testing.T) {
	f := newExtractionFixture(t, "offer")
	started := make(chan struct{})
	unblock := make(chan struct{})
	uc := f.usecase(extractorFunc(func(context.Context, string) (*ai.ExtractionResult, error) {
		close(started)
		<-unblock
		return &ai.ExtractionResult{}, nil
	}))

	var wg sync.WaitGroup
	var first *ExtractionSummary
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, _ = uc.Run(context.Background())
	}()
	<-started

	second, err := uc.Run(context.Background())
	close(unblock)
	wg.Wait()

	if err != nil || !second.Skipped {
		t.Fatalf("second run = %+v, %v; want skipped", second, err)
	}
	if first == nil || first.Skipped || first.Processed != 1 {
		t.Errorf("first run = %+v", first)
	}
}

func TestRun_ReleasesLockOnFailure(t *testing.T) {
	f := newExtractionFixture(t, "offer")
	uc := NewExtractionUsecase(
		f.accounts, failingMarks{f.raws},
		extractorFunc(func(context.Context, string) (*ai.ExtractionResult, error) {
			return &ai.ExtractionResult{}, nil
		}),
		NewMergeEngine(f.offers), backoff.New(0, time.Millisecond), nil, nil, ExtractionConfig{},
	)

	summary, err := uc.Run(context.Background())
	if err == nil {
		t.Fatal("expected storage error")
	}
	if summary.Processed != 0 {
		t.Errorf("processed = %d, want 0", summary.Processed)
	}
	if f.running(t) {
		t.Error("lock left held after failure")
	}
}

func TestRun_ReclaimsStaleLock(t *testing.T) {
	f := newExtractionFixture(t)
	stale := time.Now().Add(-time.Hour)
	_, _ = f.accounts.TryAcquireExtraction(context.Background(), "acc-1", "crashed-worker", stale)

	uc := NewExtractionUsecase(
		f.accounts, f.raws, extractorFunc(nil), NewMergeEngine(f.offers),
		backoff.New(0, time.Millisecond), nil, nil, ExtractionConfig{LockTTL: time.Minute},
	).(*extractionUsecase)
	uc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	summary, err := uc.Run(context.Background())
	if err != nil || summary.Skipped {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
	if f.running(t) {
		t.Error("reclaimed lock not released")
	}
}

func TestRun_HeartbeatKeepsLongRunExclusive(t *testing.T) {
	f := newExtractionFixture(t, "slow offer")
	var mu sync.Mutex
	active, peak := 0, 0
	started := make(chan struct{})
	var once sync.Once
	cfg := ExtractionConfig{LockTTL: 30 * time.Millisecond}
	uc := NewExtractionUsecase(
		f.accounts, f.raws,
		extractorFunc(func(context.Context, string) (*ai.ExtractionResult, error) {
			mu.Lock()
			active++
			peak = max(peak, active)
			mu.Unlock()
			once.Do(func() { close(started) })
			time.Sleep(120 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return &ai.ExtractionResult{}, nil
		}),
		NewMergeEngine(f.offers), backoff.New(0, time.Millisecond), nil, nil, cfg,
	)

	var wg sync.WaitGroup
	var first *ExtractionSummary
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = uc.Run(context.Background())
	}()
	<-started
	// Past the TTL of the first acquisition.
	time.Sleep(60 * time.Millisecond)

	second, err := uc.Run(context.Background())
	wg.Wait()

	if err != nil || !second.Skipped {
		t.Errorf("second run = %+v, %v; want skipped", second, err)
	}
	if firstErr != nil || first.Processed != 1 {
		t.Errorf("first run = %+v, %v", first, firstErr)
	}
	if peak != 1 {
		t.Errorf("concurrent extractor calls = %d, want 1", peak)
	}
	if f.running(t) {
		t.Error("lock still held after run")
	}
}

func TestRun_StopsWhenLockTakenOver(t *testing.T) {
	f := newExtractionFixture(t, "first", "second")
	calls := 0
	cfg := ExtractionConfig{LockTTL: 15 * time.Millisecond}
	uc := NewExtractionUsecase(
		f.accounts, f.raws,
		extractorFunc(func(ctx context.Context, _ string) (*ai.ExtractionResult, error) {
			calls++
			// Another worker declares this run stale and takes the lock.
			if ok, _ := f.accounts.TryAcquireExtraction(ctx, "acc-1", "other-worker", time.Now().Add(time.Hour)); !ok {
				t.Error("takeover failed")
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return &ai.ExtractionResult{}, nil
			}
		}),
		NewMergeEngine(f.offers), backoff.New(0, time.Millisecond), nil, nil, cfg,
	)

	summary, err := uc.Run(context.Background())
	if !errors.Is(err, ErrExtractionLockLost) {
		t.Fatalf("err = %v, want ErrExtractionLockLost", err)
	}
	if calls != 1 || summary.Processed != 0 || summary.Failed != 0 {
		t.Errorf("calls = %d, summary = %+v", calls, summary)
	}
	acc, _ := f.accounts.Get(context.Background())
	if !acc.ExtractionRunning || acc.ExtractionOwner != "other-worker" {
		t.Errorf("new owner's lock cleared: running=%v owner=%q", acc.ExtractionRunning, acc.ExtractionOwner)
	}
	if left, _ := f.raws.FindUnextracted(context.Background(), 10); len(left) != 2 {
		t.Errorf("unextracted = %d, want 2", len(left))
	}
}

func TestRun_FailingRecordsDoNotStarveNewer(t *testing.T) {
	bodies := make([]string, 0, DefaultBatchSize+1)
	for i := 0; i < DefaultBatchSize; i++ {
		bodies = append(bodies, fmt.Sprintf("bad %02d", i))
	}
	bodies = append(bodies, "good")
	f := newExtractionFixture(t, bodies...)
	uc := f.usecase(extractorFunc(func(_ context.Context, text string) (*ai.ExtractionResult, error) {
		if text == "good" {
			return &ai.ExtractionResult{Offers: []ai.Offer{dated("2024-06-01", 0.8)}}, nil
		}
		return nil, ai.ErrSchemaViolation
	}))

	tests := []struct {
		processed, failed int
	}{
		{0, DefaultBatchSize},
		{1, DefaultBatchSize - 1},
	}
	for i, tt := range tests {
		summary, err := uc.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
		if summary.Processed != tt.processed || summary.Failed != tt.failed {
			t.Errorf("run %d summary = %+v, want processed=%d failed=%d", i+1, summary, tt.processed, tt.failed)
		}
	}

	if n := len(f.offers.All()); n != 1 {
		t.Errorf("stored offers = %d, want 1", n)
	}
	for _, row := range f.raws.All() {
		if row.ContentText == "good" && (!row.Extracted || row.ExtractAttempts != 0) {
			t.Errorf("good record = %+v", row)
		}
		if row.ContentText != "good" && (row.Extracted || row.ExtractAttempts == 0) {
			t.Errorf("failing record %q: extracted=%v attempts=%d", row.ContentText, row.Extracted, row.ExtractAttempts)
		}
	}
}

func TestRun_WithoutAccountUsesLocalGuard(t *testing.T) {
	raws := testutil.NewRawMessages()
	_ = raws.Upsert(context.Background(), &ingestdomain.RawMessage{
		Source: ingestdomain.SourceWhatsApp, ExternalID: "x", ContentText: "chat",
	})
	uc := NewExtractionUsecase(
		testutil.NewAccounts(), raws,
		extractorFunc(func(context.Context, string) (*ai.ExtractionResult, error) {
			return &ai.ExtractionResult{}, nil
		}),
		NewMergeEngine(testutil.NewOffers()), backoff.New(0, time.Millisecond), nil, nil, ExtractionConfig{},
	)

	summary, err := uc.Run(context.Background())
	if err != nil || summary.Processed != 1 {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
}

func TestComposeText(t *testing.T) {
	item := &ingestdomain.RawMessage{
		ContentText: "Locum needed",
		ContentMeta: ingestdomain.ContentMeta{Subject: "Tues", From: "a@b.c"},
	}
	want := "Locum needed\n{\"subject\":\"Tues\",\"from\":\"a@b.c\"}"
	if got := composeText(item); got != want {
		t.Errorf("composeText() = %q, want %q", got, want)
	}
	if got := composeText(&ingestdomain.RawMessage{ContentText: "only"}); got != "only" {
		t.Errorf("composeText() without meta = %q", got)
	}
}
