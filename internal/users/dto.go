package users

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials and the staged session.
type UserDTO struct {
	ID              uuid.UUID       `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	PayoutAccountID *string         `json:"payout_account_id,omitempty"`
	PayoutAccount   json.RawMessage `json:"payout_account,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	dto := &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		PayoutAccountID: u.PayoutAccountID,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if len(u.PayoutAccountSnapshot) > 0 {
		dto.PayoutAccount = append(json.RawMessage(nil), u.PayoutAccountSnapshot...)
	}
	return dto
}
