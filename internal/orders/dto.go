package orders

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	"github.com/google/uuid"
)

// Status describes what a reconciliation attempt did.
type Status string

const (
	StatusNothingPending  Status = "nothing_pending"
	StatusPending         Status = "pending"
	StatusRecorded        Status = "recorded"
	StatusAlreadyRecorded Status = "already_recorded"
)

// Source labels where a reconciliation was triggered from.
type Source string

const (
	SourceConfirm Source = "confirm"
	SourceReplace Source = "checkout_replace"
	SourceWebhook Source = "webhook"
	SourceSweep   Source = "sweep"
)

// Result is the outcome of ConfirmAndRecord / ReconcileSession. Success is true only when
// an order exists for the session after the call.
type Result struct {
	Success bool       `json:"success"`
	Status  Status     `json:"status"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
}

// OrderDTO is the buyer-facing order shape.
type OrderDTO struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uuid.UUID       `json:"listing_id"`
	SessionID string          `json:"session_id"`
	Session   json.RawMessage `json:"session"`
	CreatedAt time.Time       `json:"created_at"`
}

func fromModel(o models.Order) OrderDTO {
	return OrderDTO{
		ID:        o.ID,
		ListingID: o.ListingID,
		SessionID: o.SessionID,
		Session:   o.Session,
		CreatedAt: o.CreatedAt,
	}
}
