package users

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const emptySession = "{}"

// Repository exposes user-related persistence operations. Every write is a targeted
// column update so concurrent writers of other columns are never clobbered.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetPayoutAccountIfEmpty stores accountID only when the user has none yet. It reports
// whether this call won; on false the caller should re-read the stored id.
func (r *Repository) SetPayoutAccountIfEmpty(ctx context.Context, id uuid.UUID, accountID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND payout_account_id IS NULL", id).
		UpdateColumns(map[string]any{
			"payout_account_id": accountID,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdatePayoutSnapshot caches the processor's account object.
func (r *Repository) UpdatePayoutSnapshot(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"payout_account_snapshot": string(snapshot),
			"updated_at":              time.Now().UTC(),
		}).Error
}

// SetPendingSession stages a checkout session for the buyer.
func (r *Repository) SetPendingSession(ctx context.Context, id uuid.UUID, session json.RawMessage, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"pending_session":    string(session),
			"pending_session_at": at,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// ClearPendingSession resets the staged session to the empty object.
func (r *Repository) ClearPendingSession(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"pending_session":    emptySession,
			"pending_session_at": nil,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// ClearPendingSessionStagedBefore clears the staged session only while it is still the one
// staged before cutoff, so a session staged concurrently is left alone.
func (r *Repository) ClearPendingSessionStagedBefore(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND pending_session_at IS NOT NULL AND pending_session_at < ?", id, cutoff).
		UpdateColumns(map[string]any{
			"pending_session":    emptySession,
			"pending_session_at": nil,
			"updated_at":         time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// FindWithPendingSessionBefore returns buyers whose session was staged before cutoff,
// oldest first.
func (r *Repository) FindWithPendingSessionBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("pending_session_at IS NOT NULL AND pending_session_at < ?", cutoff).
		Order("pending_session_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
