package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"
)

// DecodeSession parses the checkout session carried by a webhook event. The event payload
// becomes the stored snapshot.
func DecodeSession(raw json.RawMessage) (*Session, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty checkout session payload")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("checkout session id missing")
	}
	out := toSession(&sess)
	out.Raw = append(json.RawMessage(nil), raw...)
	return out, nil
}
