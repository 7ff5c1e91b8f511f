package stripe

import (
	"encoding/json"
	"time"
)

// Session payment states reported by the processor.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"

	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// Metadata keys stamped on every checkout session.
const (
	MetadataBuyerID   = "buyer_id"
	MetadataListingID = "listing_id"
)

// Session is the subset of a hosted checkout session the platform reads, plus the full
// processor payload for snapshots.
type Session struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	URL           string            `json:"url,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Raw           json.RawMessage   `json:"-"`
}

// IsPaid reports whether the processor considers the session settled.
func (s *Session) IsPaid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// IsOpen reports whether the buyer can still complete the session.
func (s *Session) IsOpen() bool {
	return s != nil && s.Status == SessionStatusOpen
}

// Snapshot returns the JSON persisted alongside buyers and orders.
func (s *Session) Snapshot() (json.RawMessage, error) {
	if s == nil {
		return nil, nil
	}
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(s)
}

// Account is a connected payout account.
type Account struct {
	ID               string          `json:"id"`
	Email            string          `json:"email,omitempty"`
	ChargesEnabled   bool            `json:"charges_enabled"`
	PayoutsEnabled   bool            `json:"payouts_enabled"`
	DetailsSubmitted bool            `json:"details_submitted"`
	Raw              json.RawMessage `json:"-"`
}

// Snapshot returns the JSON cached on the seller row.
func (a *Account) Snapshot() (json.RawMessage, error) {
	if a == nil {
		return nil, nil
	}
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(a)
}

// AccountLink is a single-use hosted onboarding link.
type AccountLink struct {
	Object    string `json:"object"`
	Created   int64  `json:"created"`
	ExpiresAt int64  `json:"expires_at"`
	URL       string `json:"url"`
}

// Amount is a balance entry in minor units.
type Amount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Balance is the connected account's balance snapshot.
type Balance struct {
	Available   []Amount  `json:"available"`
	Pending     []Amount  `json:"pending"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// CheckoutRequest describes a single-item hosted checkout.
type CheckoutRequest struct {
	Currency       string
	ProductName    string
	UnitAmount     int64
	Destination    string
	ApplicationFee *int64
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
}
