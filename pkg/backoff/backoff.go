// Package backoff retries transient upstream failures with exponential delay.
package backoff

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	DefaultRetries   = 3
	DefaultBaseDelay = 500 * time.Millisecond
)

// Executor runs an operation up to Retries+1 times. The delay before retry n
// (1-based) is BaseDelay * 2^(n-1).
type Executor struct {
	Retries   int
	BaseDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns an Executor. A negative retry count or non-positive delay falls back to the default.
func New(retries int, baseDelay time.Duration) *Executor {
	if retries < 0 {
		retries = DefaultRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Executor{Retries: retries, BaseDelay: baseDelay, sleep: sleepContext}
}

// Do runs op through e. Generic functions cannot be methods, hence the free function.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempt := 0
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		attempt++
		if attempt > e.Retries || !Retryable(err) {
			return zero, err
		}

		delay := e.BaseDelay * time.Duration(1<<(attempt-1))
		log.Printf("[Backoff] attempt %d failed (%v), retrying in %s", attempt, err, delay)

		sleep := e.sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, err
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, e *Executor, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// StatusCoder is implemented by errors that carry an upstream status code.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf extracts the upstream status code from err, if any.
func StatusOf(err error) (int, bool) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return gerr.Code, true
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode, true
	}
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() != 0 {
		return sc.StatusCode(), true
	}
	return 0, false
}

// Retryable reports whether err is transient: no status at all, or a status >= 429.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code, ok := StatusOf(err)
	return !ok || code >= 429
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
