package usecase

import (
	"context"
	"log"

	accountdomain "locum-backend/internal/account/domain"
	"locum-backend/internal/account/repository"
	"locum-backend/pkg/backoff"
)

// CredentialService hands out a usable access token for the stored account,
// refreshing and persisting the credential when needed.
type CredentialService struct {
	accounts repository.AccountRepository
	tokens   *TokenManager
	executor *backoff.Executor
}

func NewCredentialService(accounts repository.AccountRepository, tokens *TokenManager, executor *backoff.Executor) *CredentialService {
	return &CredentialService{accounts: accounts, tokens: tokens, executor: executor}
}

// AccessToken decrypts, refreshes if needed, and writes back changed material.
// Concurrent refreshes are tolerated; the last write wins.
func (s *CredentialService) AccessToken(ctx context.Context, account *accountdomain.GmailAccount) (string, error) {
	current, err := s.tokens.Decrypt(account.StoredTokens())
	if err != nil {
		return "", err
	}

	refreshed, err := backoff.Do(ctx, s.executor, func(ctx context.Context) (Tokens, error) {
		return s.tokens.RefreshIfNeeded(ctx, current)
	})
	if err != nil {
		return "", err
	}

	if Changed(current, refreshed) {
		stored, err := s.tokens.Encrypt(refreshed)
		if err != nil {
			return "", err
		}
		if err := s.accounts.SaveTokens(ctx, account.ID, stored); err != nil {
			return "", err
		}
		account.AccessToken = stored.AccessToken
		account.RefreshToken = stored.RefreshToken
		account.TokenExpiry = stored.Expiry
		log.Printf("[OAuth] refreshed access token for %s", account.Email)
	}
	return refreshed.AccessToken, nil
}
