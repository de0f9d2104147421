package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	accountdomain "locum-backend/internal/account/domain"
	"locum-backend/pkg/utils/crypto"

	"golang.org/x/oauth2"
)

// refreshWindow is how close to expiry a token may get before it is refreshed.
const refreshWindow = 60 * time.Second

// TokenManager encrypts credentials for storage and refreshes them against
// the OAuth provider.
type TokenManager struct {
	cipher *crypto.Cipher
	oauth  *oauth2.Config
	now    func() time.Time
}

func NewTokenManager(cipher *crypto.Cipher, oauthConfig *oauth2.Config) *TokenManager {
	return &TokenManager{cipher: cipher, oauth: oauthConfig, now: time.Now}
}

// Encrypt seals each token independently.
func (m *TokenManager) Encrypt(t Tokens) (accountdomain.StoredTokens, error) {
	access, err := m.cipher.Encrypt(t.AccessToken)
	if err != nil {
		return accountdomain.StoredTokens{}, fmt.Errorf("encrypt access token: %w", err)
	}
	stored := accountdomain.StoredTokens{AccessToken: access, Expiry: t.Expiry}
	if t.RefreshToken != "" {
		refresh, err := m.cipher.Encrypt(t.RefreshToken)
		if err != nil {
			return accountdomain.StoredTokens{}, fmt.Errorf("encrypt refresh token: %w", err)
		}
		stored.RefreshToken = &refresh
	}
	return stored, nil
}

// Decrypt is the inverse of Encrypt. Tampered records return crypto.ErrDecrypt.
func (m *TokenManager) Decrypt(s accountdomain.StoredTokens) (Tokens, error) {
	access, err := m.cipher.Decrypt(s.AccessToken)
	if err != nil {
		return Tokens{}, fmt.Errorf("decrypt access token: %w", err)
	}
	t := Tokens{AccessToken: access, Expiry: s.Expiry}
	if s.RefreshToken != nil && *s.RefreshToken != "" {
		refresh, err := m.cipher.Decrypt(*s.RefreshToken)
		if err != nil {
			return Tokens{}, fmt.Errorf("decrypt refresh token: %w", err)
		}
		t.RefreshToken = refresh
	}
	return t, nil
}

// RefreshIfNeeded returns t unchanged unless its expiry is set and falls
// within the refresh window. The previous refresh token is kept when the
// provider does not issue a new one.
func (m *TokenManager) RefreshIfNeeded(ctx context.Context, t Tokens) (Tokens, error) {
	if t.Expiry == nil || t.Expiry.After(m.now().Add(refreshWindow)) {
		return t, nil
	}
	if t.RefreshToken == "" {
		return Tokens{}, fmt.Errorf("%w: access token expiring and no refresh token stored", ErrAuthInvalid)
	}

	// Force the refresh: oauth2 only refreshes tokens it considers expired.
	stale := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       m.now().Add(-time.Minute),
	}
	fresh, err := m.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < http.StatusTooManyRequests {
			return Tokens{}, fmt.Errorf("%w: %w", ErrAuthInvalid, err)
		}
		return Tokens{}, fmt.Errorf("refresh access token: %w", err)
	}

	out := Tokens{AccessToken: fresh.AccessToken, RefreshToken: fresh.RefreshToken}
	if out.RefreshToken == "" {
		out.RefreshToken = t.RefreshToken
	}
	if !fresh.Expiry.IsZero() {
		exp := fresh.Expiry
		out.Expiry = &exp
	}
	return out, nil
}

// Changed reports whether a refresh produced material that must be persisted.
func Changed(before, after Tokens) bool {
	if before.AccessToken != after.AccessToken {
		return true
	}
	switch {
	case before.Expiry == nil && after.Expiry == nil:
		return false
	case before.Expiry == nil || after.Expiry == nil:
		return true
	default:
		return !before.Expiry.Equal(*after.Expiry)
	}
}
