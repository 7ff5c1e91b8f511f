package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a bookable property. Price is stored in the major currency unit.
type Listing struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title      string          `gorm:"column:title;not null"`
	Content    string          `gorm:"column:content;not null;default:''"`
	Location   string          `gorm:"column:location;not null;default:''"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	PostedByID uuid.UUID       `gorm:"column:posted_by;type:uuid;not null"`
	PostedBy   *User           `gorm:"foreignKey:PostedByID"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
