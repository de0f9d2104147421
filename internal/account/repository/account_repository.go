package repository

import (
	"context"
	"time"

	"locum-backend/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context) (*domain.GmailAccount, error) {
	var account domain.GmailAccount
	err := r.db.WithContext(ctx).Order("created_at ASC").First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Upsert keeps sync settings of an existing row; only credentials are replaced.
func (r *accountRepository) Upsert(ctx context.Context, account *domain.GmailAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_expiry", "updated_at",
		}),
	}).Create(account).Error
}

func (r *accountRepository) SaveTokens(ctx context.Context, id string, tokens domain.StoredTokens) error {
	return r.update(ctx, id, map[string]interface{}{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"token_expiry":  tokens.Expiry,
	})
}

func (r *accountRepository) UpdateCursor(ctx context.Context, id, historyID string) error {
	return r.update(ctx, id, map[string]interface{}{"last_history_id": historyID})
}

func (r *accountRepository) UpdateWatch(ctx context.Context, id string, expiration *time.Time, historyID string) error {
	updates := map[string]interface{}{"watch_expiration": expiration}
	if historyID != "" {
		updates["last_history_id"] = historyID
	}
	return r.update(ctx, id, updates)
}

func (r *accountRepository) UpdateSettings(ctx context.Context, id, gmailQuery string, autoExtract bool) error {
	return r.update(ctx, id, map[string]interface{}{
		"gmail_query":  gmailQuery,
		"auto_extract": autoExtract,
	})
}

// TryAcquireExtraction is a single conditional UPDATE; RowsAffected decides ownership.
func (r *accountRepository) TryAcquireExtraction(ctx context.Context, id, owner string, staleBefore time.Time) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.GmailAccount{}).
		Where("id = ? AND (extraction_running = ? OR extraction_started_at IS NULL OR extraction_started_at < ?)", id, false, staleBefore).
		Updates(map[string]interface{}{
			"extraction_running":    true,
			"extraction_started_at": now,
			"extraction_owner":      owner,
			"updated_at":            now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *accountRepository) RefreshExtraction(ctx context.Context, id, owner string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.GmailAccount{}).
		Where("id = ? AND extraction_running = ? AND extraction_owner = ?", id, true, owner).
		Update("extraction_started_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *accountRepository) ReleaseExtraction(ctx context.Context, id, owner string) error {
	return r.db.WithContext(ctx).Model(&domain.GmailAccount{}).
		Where("id = ? AND extraction_owner = ?", id, owner).
		Updates(map[string]interface{}{
			"extraction_running":    false,
			"extraction_started_at": nil,
			"extraction_owner":      "",
			"updated_at":            time.Now(),
		}).Error
}

func (r *accountRepository) update(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&domain.GmailAccount{}).Where("id = ?", id).Updates(updates).Error
}
