package stripe

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/staybook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
)

func TestCheckoutParamsBuildsSingleItemDestinationCharge(t *testing.T) {
	fee := int64(2000)
	params := checkoutParams(CheckoutRequest{
		Currency:       "USD",
		ProductName:    "Lakeside cabin",
		UnitAmount:     10000,
		Destination:    "acct_seller",
		ApplicationFee: &fee,
		SuccessURL:     "https://app.test/success/lst_1",
		CancelURL:      "https://app.test/cancel",
		Metadata:       map[string]string{MetadataBuyerID: "b1", MetadataListingID: "lst_1"},
	})

	require.Len(t, params.LineItems, 1)
	item := params.LineItems[0]
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, "Lakeside cabin", *item.PriceData.ProductData.Name)
	assert.Equal(t, int64(10000), *item.PriceData.UnitAmount)
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "payment", *params.Mode)
	require.Len(t, params.PaymentMethodTypes, 1)
	assert.Equal(t, "card", *params.PaymentMethodTypes[0])
	assert.Equal(t, "acct_seller", *params.PaymentIntentData.TransferData.Destination)
	assert.Equal(t, int64(2000), *params.PaymentIntentData.ApplicationFeeAmount)
	assert.Equal(t, "https://app.test/success/lst_1", *params.SuccessURL)
	assert.Equal(t, "https://app.test/cancel", *params.CancelURL)
	assert.Equal(t, "b1", params.Metadata[MetadataBuyerID])
	assert.Equal(t, "lst_1", params.Metadata[MetadataListingID])
}

func TestCheckoutParamsOmitsFeeWhenNotRequested(t *testing.T) {
	params := checkoutParams(CheckoutRequest{Currency: "usd", UnitAmount: 500, Destination: "acct_1"})
	assert.Nil(t, params.PaymentIntentData.ApplicationFeeAmount)
}

func TestCallMapsFailuresToProviderError(t *testing.T) {
	p := &Processor{timeout: time.Second}

	err := p.call(context.Background(), "checkout_session.retrieve", func(context.Context) error {
		return &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: 404, Msg: "No such session"}
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentProvider, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "checkout_session.retrieve", details["operation"])
	assert.Equal(t, 404, details["processor_status"])
}

func TestCallTimesOut(t *testing.T) {
	p := &Processor{timeout: 10 * time.Millisecond}

	err := p.call(context.Background(), "balance.retrieve", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("request canceled")
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
}

func TestCallPassesThroughSuccess(t *testing.T) {
	p := &Processor{timeout: time.Second}
	called := false
	err := p.call(context.Background(), "account.create", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		called = hasDeadline
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called, "processor calls must run under a deadline")
}

func TestToSessionKeepsRawPayload(t *testing.T) {
	sess := &stripe.CheckoutSession{
		ID:            "cs_test_1",
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{MetadataListingID: "lst_1"},
	}
	sess.LastResponse = &stripe.APIResponse{RawJSON: []byte(`{"id":"cs_test_1","payment_status":"paid"}`)}

	out := toSession(sess)
	require.NotNil(t, out)
	assert.True(t, out.IsPaid())
	assert.False(t, out.IsOpen())
	snap, err := out.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cs_test_1","payment_status":"paid"}`, string(snap))
}

func TestOnboardingURL(t *testing.T) {
	link := &AccountLink{
		Object:    "account_link",
		Created:   1700000000,
		ExpiresAt: 1700000300,
		URL:       "https://connect.stripe.com/setup/s/abc",
	}

	got := OnboardingURL(link, "host@example.com")
	require.True(t, strings.HasPrefix(got, link.URL+"?"))

	q, err := url.ParseQuery(strings.TrimPrefix(got, link.URL+"?"))
	require.NoError(t, err)
	assert.Equal(t, "account_link", q.Get("object"))
	assert.Equal(t, "1700000000", q.Get("created"))
	assert.Equal(t, "1700000300", q.Get("expires_at"))
	assert.Equal(t, link.URL, q.Get("url"))
	assert.Equal(t, "host@example.com", q.Get("stripe_user[email]"))

	withoutEmail := OnboardingURL(link, "  ")
	assert.NotContains(t, withoutEmail, "stripe_user")
	assert.Equal(t, "", OnboardingURL(nil, "x"))
}

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Secret: "whsec_1"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec_1", Env: "test"}, nil)
	assert.Error(t, err)

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_1", Env: "test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", client.Environment())
	assert.Equal(t, "whsec_1", client.SigningSecret())
	assert.Equal(t, defaultCallTimeout, client.CallTimeout())
}
