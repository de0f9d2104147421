package scheduler

import (
	"context"
	"testing"
	"time"

	shiftusecase "locum-backend/internal/shift/usecase"
	syncusecase "locum-backend/internal/sync/usecase"
)

type fakeSync struct {
	syncusecase.SyncUsecase
	status  *syncusecase.Status
	renewed int
}

func (f *fakeSync) Status(context.Context) (*syncusecase.Status, error) { return f.status, nil }

func (f *fakeSync) RenewWatch(context.Context) (*syncusecase.WatchResult, error) {
	f.renewed++
	return &syncusecase.WatchResult{}, nil
}

type countingExtraction struct{ runs int }

func (c *countingExtraction) Run(context.Context) (*shiftusecase.ExtractionSummary, error) {
	c.runs++
	return &shiftusecase.ExtractionSummary{}, nil
}

func TestRenewWatchIfDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(2 * time.Hour)
	later := now.Add(5 * 24 * time.Hour)

	tests := []struct {
		name   string
		status *syncusecase.Status
		want   bool
	}{
		{"no account", nil, false},
		{"never watched", &syncusecase.Status{}, true},
		{"expires soon", &syncusecase.Status{WatchExpiration: &soon}, true},
		{"still valid", &syncusecase.Status{WatchExpiration: &later}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSync{status: tt.status}
			s := NewScheduler(fs, nil, Config{})
			s.now = func() time.Time { return now }

			if got := s.renewWatchIfDue(context.Background()); got != tt.want {
				t.Errorf("renewWatchIfDue = %v, want %v", got, tt.want)
			}
			if want := map[bool]int{true: 1, false: 0}[tt.want]; fs.renewed != want {
				t.Errorf("renewed = %d, want %d", fs.renewed, want)
			}
		})
	}
}

func TestExtractIfDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ex := &countingExtraction{}
	s := NewScheduler(&fakeSync{}, ex, Config{ExtractEvery: 30 * time.Minute})
	s.now = func() time.Time { return now }

	s.extractIfDue(context.Background())
	now = now.Add(10 * time.Minute)
	s.extractIfDue(context.Background())
	now = now.Add(25 * time.Minute)
	s.extractIfDue(context.Background())

	if ex.runs != 2 {
		t.Errorf("runs = %d, want 2", ex.runs)
	}
}

func TestExtractDisabledByDefault(t *testing.T) {
	ex := &countingExtraction{}
	s := NewScheduler(&fakeSync{}, ex, Config{})
	if s.extractIfDue(context.Background()) || ex.runs != 0 {
		t.Errorf("extraction ran with ExtractEvery unset")
	}
}
