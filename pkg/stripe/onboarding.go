package stripe

import (
	"net/url"
	"strconv"
	"strings"
)

// OnboardingURL appends the link metadata and the seller's email to the hosted onboarding
// URL so the processor's form opens prefilled. The email is omitted when empty.
func OnboardingURL(link *AccountLink, email string) string {
	if link == nil {
		return ""
	}
	q := url.Values{}
	q.Set("object", link.Object)
	q.Set("created", strconv.FormatInt(link.Created, 10))
	q.Set("expires_at", strconv.FormatInt(link.ExpiresAt, 10))
	q.Set("url", link.URL)
	if email = strings.TrimSpace(email); email != "" {
		q.Set("stripe_user[email]", email)
	}
	return link.URL + "?" + q.Encode()
}
