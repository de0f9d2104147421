package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	accountrepo "locum-backend/internal/account/repository"
	ingestdomain "locum-backend/internal/ingest/domain"
	ingestrepo "locum-backend/internal/ingest/repository"
	"locum-backend/internal/shift/domain"
	"locum-backend/pkg/ai"
	"locum-backend/pkg/backoff"

	"github.com/google/uuid"
)

const (
	DefaultBatchSize = 20
	DefaultLockTTL   = 15 * time.Minute
)

type ExtractionConfig struct {
	BatchSize int
	LockTTL   time.Duration
}

type extractionUsecase struct {
	accounts  accountrepo.AccountRepository
	raws      ingestrepo.RawMessageRepository
	extractor ai.OfferExtractor
	merge     *MergeEngine
	executor  *backoff.Executor
	events    OfferEvents
	notifier  OfferNotifier
	cfg       ExtractionConfig
	now       func() time.Time

	// Guards runs when no account row exists to hold the lock.
	local sync.Mutex
}

// NewExtractionUsecase wires the extraction pass. events and notifier may be nil.
func NewExtractionUsecase(
	accounts accountrepo.AccountRepository,
	raws ingestrepo.RawMessageRepository,
	extractor ai.OfferExtractor,
	merge *MergeEngine,
	executor *backoff.Executor,
	events OfferEvents,
	notifier OfferNotifier,
	cfg ExtractionConfig,
) ExtractionUsecase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &extractionUsecase{
		accounts:  accounts,
		raws:      raws,
		extractor: extractor,
		merge:     merge,
		executor:  executor,
		events:    events,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (u *extractionUsecase) Run(ctx context.Context) (*ExtractionSummary, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	release, ok, err := u.acquire(ctx, cancel)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Printf("[Extract] another extraction is running, skipping")
		return &ExtractionSummary{Skipped: true}, nil
	}
	defer release()

	items, err := u.raws.FindUnextracted(ctx, u.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load unextracted messages: %w", err)
	}

	summary := &ExtractionSummary{}
	var created []*domain.ShiftOffer
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		result, err := backoff.Do(ctx, u.executor, func(ctx context.Context) (*ai.ExtractionResult, error) {
			res, err := u.extractor.ExtractOffers(ctx, composeText(item))
			if errors.Is(err, ai.ErrSchemaViolation) {
				return nil, backoff.Permanent(err)
			}
			return res, err
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// Left unextracted; the attempt count moves it behind fresh rows.
			log.Printf("[Extract] message %s failed: %v", item.ID, err)
			summary.Failed++
			if err := u.raws.RecordExtractFailure(ctx, item.ID); err != nil {
				log.Printf("[Extract] failed to record attempt for %s: %v", item.ID, err)
			}
			continue
		}

		for _, o := range result.Offers {
			offer, ok := toExtractedOffer(o)
			if !ok {
				continue
			}
			merged, isNew, err := u.merge.Merge(ctx, offer, item.ID)
			if err != nil {
				return summary, err
			}
			if isNew {
				summary.OffersCreated++
				created = append(created, merged)
			} else {
				summary.OffersUpdated++
			}
			if u.events != nil {
				u.events.OfferMerged(ctx, merged, isNew)
			}
		}

		if err := u.raws.MarkExtracted(ctx, item.ID); err != nil {
			return summary, fmt.Errorf("mark %s extracted: %w", item.ID, err)
		}
		summary.Processed++
	}

	log.Printf("[Extract] processed=%d failed=%d created=%d updated=%d",
		summary.Processed, summary.Failed, summary.OffersCreated, summary.OffersUpdated)

	if u.notifier != nil && len(created) > 0 {
		u.notifier.NotifyNewOffers(context.WithoutCancel(ctx), created)
	}
	if ctx.Err() != nil {
		return summary, context.Cause(ctx)
	}
	return summary, nil
}

// acquire takes the account-row lock, or the in-process one when no mailbox
// is connected yet. While the row lock is held a heartbeat keeps it fresh;
// if another owner takes it over, lost is called. release ignores ctx
// cancellation and only clears the lock this run owns.
func (u *extractionUsecase) acquire(ctx context.Context, lost context.CancelCauseFunc) (func(), bool, error) {
	account, err := u.accounts.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load account: %w", err)
	}

	if account == nil {
		if !u.local.TryLock() {
			return nil, false, nil
		}
		return u.local.Unlock, true, nil
	}

	owner := uuid.New().String()
	ok, err := u.accounts.TryAcquireExtraction(ctx, account.ID, owner, u.now().Add(-u.cfg.LockTTL))
	if err != nil {
		return nil, false, fmt.Errorf("acquire extraction lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		u.heartbeat(ctx, account.ID, owner, stop, lost)
	}()

	release := func() {
		close(stop)
		wg.Wait()
		if err := u.accounts.ReleaseExtraction(context.WithoutCancel(ctx), account.ID, owner); err != nil {
			log.Printf("[Extract] failed to release lock for %s: %v", account.ID, err)
		}
	}
	return release, true, nil
}

func (u *extractionUsecase) heartbeat(ctx context.Context, accountID, owner string, stop <-chan struct{}, lost context.CancelCauseFunc) {
	ticker := time.NewTicker(max(u.cfg.LockTTL/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := u.accounts.RefreshExtraction(ctx, accountID, owner)
			if err != nil {
				log.Printf("[Extract] failed to refresh lock for %s: %v", accountID, err)
				continue
			}
			if !held {
				log.Printf("[Extract] lock for %s taken over, stopping", accountID)
				lost(ErrExtractionLockLost)
				return
			}
		}
	}
}

// composeText is the content text followed by the serialized metadata.
func composeText(item *ingestdomain.RawMessage) string {
	meta, err := json.Marshal(item.ContentMeta)
	if err != nil || string(meta) == "{}" {
		return item.ContentText
	}
	return item.ContentText + "\n" + string(meta)
}

// toExtractedOffer drops offers without a YYYY-MM-DD date.
func toExtractedOffer(o ai.Offer) (domain.ExtractedOffer, bool) {
	if o.Date == nil {
		return domain.ExtractedOffer{}, false
	}
	if _, err := time.Parse("2006-01-02", *o.Date); err != nil {
		return domain.ExtractedOffer{}, false
	}

	out := domain.ExtractedOffer{
		Date:           *o.Date,
		StartTime:      o.StartTime,
		EndTime:        o.EndTime,
		RateValue:      o.RateValue,
		PracticeName:   o.PracticeName,
		Postcode:       o.Postcode,
		Town:           o.Town,
		Agency:         o.Agency,
		BookingChannel: domain.BookingChannel(o.BookingChannel),
		BookingTarget:  o.BookingTarget,
		Notes:          o.Notes,
		Confidence:     o.Confidence,
	}
	if o.RateUnit != nil {
		unit := domain.RateUnit(*o.RateUnit)
		out.RateUnit = &unit
	}
	return out, true
}
