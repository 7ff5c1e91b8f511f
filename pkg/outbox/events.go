package outbox

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated = "order.created"

	AggregateOrder = "order"
)

// OrderCreatedEvent is emitted once per recorded order.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	ListingID uuid.UUID `json:"listingId"`
	BuyerID   uuid.UUID `json:"buyerId"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}
