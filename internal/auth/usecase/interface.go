package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	accountdomain "locum-backend/internal/account/domain"
)

type authInvalidError struct{}

func (authInvalidError) Error() string   { return "oauth credentials invalid, re-authorization required" }
func (authInvalidError) StatusCode() int { return http.StatusUnauthorized }

// ErrAuthInvalid marks revoked or missing refresh credentials. It carries a
// 401 status so the backoff executor never retries it.
var ErrAuthInvalid error = authInvalidError{}

var ErrInvalidToken = errors.New("invalid or expired token")

// Tokens is plaintext OAuth material. It never leaves memory.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

// AuthUsecase issues and validates the signed tokens this service hands out:
// admin bearer tokens and OAuth state values.
type AuthUsecase interface {
	IssueAdminToken(subject string, ttl time.Duration) (string, error)
	ValidateAdminToken(token string) (string, error)
	IssueState() (string, error)
	ValidateState(state string) error
}

// OAuthUsecase connects the mailbox through the authorization-code flow.
type OAuthUsecase interface {
	AuthURL() (string, error)
	Connect(ctx context.Context, state, code string) (*accountdomain.GmailAccount, error)
	// SetWatchRenewer registers the hook run after a successful connect.
	SetWatchRenewer(fn func(ctx context.Context) error)
}
