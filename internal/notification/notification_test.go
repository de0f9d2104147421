package notification

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	shiftdomain "locum-backend/internal/shift/domain"
	syncusecase "locum-backend/internal/sync/usecase"
	"locum-backend/internal/testutil"
	"locum-backend/pkg/fcm"
)

type stubSync struct {
	syncusecase.SyncUsecase
	historyIDs []string
	err        error
}

func (s *stubSync) HandleNotification(_ context.Context, historyID string) (*syncusecase.SyncResult, error) {
	s.historyIDs = append(s.historyIDs, historyID)
	if s.err != nil {
		return nil, s.err
	}
	return &syncusecase.SyncResult{Ingested: 1}, nil
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		syncErr error
		wantAck bool
		wantIDs []string
	}{
		{"delta sync", `{"emailAddress":"me@example.com","historyId":42}`, nil, true, []string{"42"}},
		{"malformed acked", `garbage`, nil, true, nil},
		{"sync failure nacked", `{"historyId":"43"}`, errors.New("boom"), false, []string{"43"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := &stubSync{err: tt.syncErr}
			s := &Service{sync: sync}
			if got := s.handleMessage(context.Background(), []byte(tt.data)); got != tt.wantAck {
				t.Errorf("ack = %v, want %v", got, tt.wantAck)
			}
			if !reflect.DeepEqual(sync.historyIDs, tt.wantIDs) {
				t.Errorf("history ids = %v, want %v", sync.historyIDs, tt.wantIDs)
			}
		})
	}
}

type fakeSender struct {
	tokens []string
	sent   fcm.NotificationData
	failed []string
}

func (f *fakeSender) SendToDevices(_ context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.tokens = tokens
	f.sent = n
	return f.failed, nil
}

func TestOfferNotifier_SendsAndPrunesFailedTokens(t *testing.T) {
	devices := testutil.NewDevices("tok-a", "tok-b")
	sender := &fakeSender{failed: []string{"tok-b"}}
	practice := "Park Dental"
	rate := 450.0

	NewOfferNotifier(devices, sender, "https://app.example").NotifyNewOffers(context.Background(), []*shiftdomain.ShiftOffer{
		{ID: "o1", Date: "2024-05-14", PracticeName: &practice, RateValue: &rate},
		{ID: "o2", Date: "2024-05-15"},
	})

	if !reflect.DeepEqual(sender.tokens, []string{"tok-a", "tok-b"}) {
		t.Errorf("sent to %v", sender.tokens)
	}
	if sender.sent.Title != "2 new locum shifts" || !strings.Contains(sender.sent.Body, "Park Dental") {
		t.Errorf("notification = %+v", sender.sent)
	}
	left, _ := devices.ListTokens(context.Background())
	if !reflect.DeepEqual(left, []string{"tok-a"}) {
		t.Errorf("remaining tokens = %v", left)
	}
}

func TestOfferNotifier_NoDevices(t *testing.T) {
	sender := &fakeSender{}
	NewOfferNotifier(testutil.NewDevices(), sender, "").NotifyNewOffers(context.Background(), []*shiftdomain.ShiftOffer{{ID: "o1"}})
	if sender.tokens != nil {
		t.Error("sent without devices")
	}
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload []byte, _ string) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestOfferEvents(t *testing.T) {
	pub := &fakePublisher{}
	events := NewOfferEvents(pub)
	offer := &shiftdomain.ShiftOffer{ID: "o1", Date: "2024-05-14"}

	events.OfferMerged(context.Background(), offer, true)
	events.OfferMerged(context.Background(), offer, false)

	if !reflect.DeepEqual(pub.subjects, []string{"shifts.offer.created", "shifts.offer.updated"}) {
		t.Errorf("subjects = %v", pub.subjects)
	}
	var ev struct {
		Type  string `json:"type"`
		Offer struct {
			ID string `json:"id"`
		} `json:"offer"`
	}
	if err := json.Unmarshal(pub.payloads[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "offer.created" || ev.Offer.ID != "o1" {
		t.Errorf("event = %+v", ev)
	}
}
