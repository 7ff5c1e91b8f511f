package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order records a paid checkout session. Rows are immutable once written.
type Order struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID   uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	SessionID   string          `gorm:"column:session_id;not null;uniqueIndex:orders_session_id_key"`
	Session     json.RawMessage `gorm:"column:session;type:jsonb;not null"`
	OrderedByID uuid.UUID       `gorm:"column:ordered_by;type:uuid;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
