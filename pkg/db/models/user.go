package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is both seller and buyer. Identity fields are owned by the auth service; this service
// only writes the payout and pending-session columns.
type User struct {
	ID                    uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                 string          `gorm:"type:text;not null;uniqueIndex"`
	Name                  string          `gorm:"column:name;not null"`
	PasswordHash          string          `gorm:"column:password_hash;not null"`
	PayoutAccountID       *string         `gorm:"column:payout_account_id"`
	PayoutAccountSnapshot json.RawMessage `gorm:"column:payout_account_snapshot;type:jsonb"`
	PendingSession        json.RawMessage `gorm:"column:pending_session;type:jsonb;not null;default:'{}'"`
	PendingSessionAt      *time.Time      `gorm:"column:pending_session_at"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// HasPayoutAccount reports whether a connected account has been created for the user.
func (u *User) HasPayoutAccount() bool {
	return u != nil && u.PayoutAccountID != nil && *u.PayoutAccountID != ""
}

// SessionRef is the subset of a stored checkout session this service reads back.
type SessionRef struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PendingSessionRef decodes the staged checkout session. ok is false for the empty object.
func (u *User) PendingSessionRef() (SessionRef, bool) {
	var ref SessionRef
	if u == nil {
		return ref, false
	}
	raw := bytes.TrimSpace(u.PendingSession)
	if len(raw) == 0 || bytes.Equal(raw, []byte("{}")) || bytes.Equal(raw, []byte("null")) {
		return ref, false
	}
	if err := json.Unmarshal(raw, &ref); err != nil || ref.ID == "" {
		return SessionRef{}, false
	}
	return ref, true
}
