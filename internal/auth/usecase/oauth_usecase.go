package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	accountdomain "locum-backend/internal/account/domain"
	"locum-backend/internal/account/repository"
	syncdomain "locum-backend/internal/sync/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested at consent time.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
}

// NewOAuthConfig builds the Google OAuth client configuration.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

type oauthUsecase struct {
	config       *oauth2.Config
	auth         AuthUsecase
	tokens       *TokenManager
	accounts     repository.AccountRepository
	mail         syncdomain.MailProvider
	defaultQuery string
	renewWatch   func(ctx context.Context) error
}

func NewOAuthUsecase(config *oauth2.Config, auth AuthUsecase, tokens *TokenManager, accounts repository.AccountRepository, mail syncdomain.MailProvider, defaultQuery string) OAuthUsecase {
	return &oauthUsecase{
		config:       config,
		auth:         auth,
		tokens:       tokens,
		accounts:     accounts,
		mail:         mail,
		defaultQuery: defaultQuery,
	}
}

func (u *oauthUsecase) SetWatchRenewer(fn func(ctx context.Context) error) {
	u.renewWatch = fn
}

// AuthURL asks for offline access with forced consent so a refresh token is always issued.
func (u *oauthUsecase) AuthURL() (string, error) {
	state, err := u.auth.IssueState()
	if err != nil {
		return "", err
	}
	return u.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (u *oauthUsecase) Connect(ctx context.Context, state, code string) (*accountdomain.GmailAccount, error) {
	if err := u.auth.ValidateState(state); err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	token, err := u.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	profile, err := u.mail.GetProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox profile: %w", err)
	}

	plain := Tokens{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if !token.Expiry.IsZero() {
		exp := token.Expiry
		plain.Expiry = &exp
	}
	stored, err := u.tokens.Encrypt(plain)
	if err != nil {
		return nil, err
	}

	existing, err := u.accounts.Get(ctx)
	if err != nil {
		return nil, err
	}

	account := &accountdomain.GmailAccount{
		Email:        profile.EmailAddress,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenExpiry:  stored.Expiry,
		GmailQuery:   u.defaultQuery,
	}
	if existing != nil && existing.Email != profile.EmailAddress {
		return nil, fmt.Errorf("mailbox %s is already connected", existing.Email)
	}
	if existing != nil {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
		if account.RefreshToken == nil {
			// Google only issues a refresh token on first consent.
			account.RefreshToken = existing.RefreshToken
		}
	}
	if err := u.accounts.Upsert(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("[OAuth] connected mailbox %s", account.Email)

	if u.renewWatch != nil {
		if err := u.renewWatch(ctx); err != nil {
			log.Printf("[WARN] watch registration after connect failed: %v", err)
		}
	}

	return u.accounts.Get(ctx)
}
