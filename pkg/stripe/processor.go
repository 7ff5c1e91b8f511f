package stripe

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/balance"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/loginlink"

	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
)

const accountLinkTypeOnboarding = "account_onboarding"

// Processor is the platform's single entry point into the payment processor. Every call
// is bounded by the client's call timeout and failures surface as PAYMENT_PROVIDER_ERROR.
type Processor struct {
	timeout time.Duration
	logg    *logger.Logger
}

// NewProcessor builds a processor bound to an initialized client.
func NewProcessor(client *Client, logg *logger.Logger) (*Processor, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Processor{timeout: client.CallTimeout(), logg: logg}, nil
}

// CreateAccount registers a new standard connected account.
func (p *Processor) CreateAccount(ctx context.Context) (*Account, error) {
	var out *Account
	err := p.call(ctx, "account.create", func(ctx context.Context) error {
		params := &stripe.AccountParams{Type: stripe.String(string(stripe.AccountTypeStandard))}
		params.Context = ctx
		acct, err := account.New(params)
		if err != nil {
			return err
		}
		out = toAccount(acct)
		return nil
	})
	return out, err
}

// RetrieveAccount fetches the connected account by id.
func (p *Processor) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	var out *Account
	err := p.call(ctx, "account.retrieve", func(ctx context.Context) error {
		params := &stripe.AccountParams{}
		params.Context = ctx
		acct, err := account.GetByID(accountID, params)
		if err != nil {
			return err
		}
		out = toAccount(acct)
		return nil
	})
	return out, err
}

// CreateAccountLink requests a fresh hosted onboarding link.
func (p *Processor) CreateAccountLink(ctx context.Context, accountID, redirectURL string) (*AccountLink, error) {
	var out *AccountLink
	err := p.call(ctx, "account_link.create", func(ctx context.Context) error {
		params := &stripe.AccountLinkParams{
			Account:    stripe.String(accountID),
			RefreshURL: stripe.String(redirectURL),
			ReturnURL:  stripe.String(redirectURL),
			Type:       stripe.String(accountLinkTypeOnboarding),
		}
		params.Context = ctx
		link, err := accountlink.New(params)
		if err != nil {
			return err
		}
		out = &AccountLink{
			Object:    link.Object,
			Created:   link.Created,
			ExpiresAt: link.ExpiresAt,
			URL:       link.URL,
		}
		return nil
	})
	return out, err
}

// CreateLoginLink returns a dashboard login URL for the connected account.
func (p *Processor) CreateLoginLink(ctx context.Context, accountID, redirectURL string) (string, error) {
	var out string
	err := p.call(ctx, "login_link.create", func(ctx context.Context) error {
		params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
		params.Context = ctx
		if redirectURL != "" {
			params.AddExtra("redirect_url", redirectURL)
		}
		link, err := loginlink.New(params)
		if err != nil {
			return err
		}
		out = link.URL
		return nil
	})
	return out, err
}

// RetrieveBalance reads the balance scoped to the connected account.
func (p *Processor) RetrieveBalance(ctx context.Context, accountID string) (*Balance, error) {
	var out *Balance
	err := p.call(ctx, "balance.retrieve", func(ctx context.Context) error {
		params := &stripe.BalanceParams{}
		params.Context = ctx
		params.SetStripeAccount(accountID)
		bal, err := balance.Get(params)
		if err != nil {
			return err
		}
		out = &Balance{
			Available:   toAmounts(bal.Available),
			Pending:     toAmounts(bal.Pending),
			RetrievedAt: time.Now().UTC(),
		}
		return nil
	})
	return out, err
}

// CreateCheckoutSession opens a hosted checkout for a single item.
func (p *Processor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	var out *Session
	err := p.call(ctx, "checkout_session.create", func(ctx context.Context) error {
		params := checkoutParams(req)
		params.Context = ctx
		sess, err := checkoutsession.New(params)
		if err != nil {
			return err
		}
		out = toSession(sess)
		return nil
	})
	return out, err
}

// RetrieveCheckoutSession re-reads a session; the processor is the source of truth for payment state.
func (p *Processor) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	var out *Session
	err := p.call(ctx, "checkout_session.retrieve", func(ctx context.Context) error {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		sess, err := checkoutsession.Get(sessionID, params)
		if err != nil {
			return err
		}
		out = toSession(sess)
		return nil
	})
	return out, err
}

// ExpireCheckoutSession closes an open session so it can no longer be paid.
func (p *Processor) ExpireCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	var out *Session
	err := p.call(ctx, "checkout_session.expire", func(ctx context.Context) error {
		params := &stripe.CheckoutSessionExpireParams{}
		params.Context = ctx
		sess, err := checkoutsession.Expire(sessionID, params)
		if err != nil {
			return err
		}
		out = toSession(sess)
		return nil
	})
	return out, err
}

func (p *Processor) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if stdErrors.Is(callCtx.Err(), context.DeadlineExceeded) && !stdErrors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	mapped := providerError(op, err)
	if p.logg != nil {
		p.logg.Error(p.logg.WithField(ctx, "processor_op", op), "payment processor call failed", mapped)
	}
	return mapped
}

func providerError(op string, err error) *pkgerrors.Error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, "payment processor timed out").
			WithDetails(map[string]any{"operation": op})
	}
	details := map[string]any{"operation": op}
	var stripeErr *stripe.Error
	if stdErrors.As(err, &stripeErr) {
		if stripeErr.Code != "" {
			details["processor_code"] = string(stripeErr.Code)
		}
		if stripeErr.HTTPStatusCode != 0 {
			details["processor_status"] = stripeErr.HTTPStatusCode
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, "payment processor request failed").WithDetails(details)
}

func checkoutParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	intent := &stripe.CheckoutSessionPaymentIntentDataParams{
		TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(req.Destination),
		},
	}
	if req.ApplicationFee != nil {
		intent.ApplicationFeeAmount = stripe.Int64(*req.ApplicationFee)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: intent,
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func toSession(sess *stripe.CheckoutSession) *Session {
	if sess == nil {
		return nil
	}
	out := &Session{
		ID:            sess.ID,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		URL:           sess.URL,
		Metadata:      sess.Metadata,
	}
	if sess.LastResponse != nil && len(sess.LastResponse.RawJSON) > 0 {
		out.Raw = json.RawMessage(sess.LastResponse.RawJSON)
	} else if raw, err := json.Marshal(sess); err == nil {
		out.Raw = raw
	}
	return out
}

func toAccount(acct *stripe.Account) *Account {
	if acct == nil {
		return nil
	}
	out := &Account{
		ID:               acct.ID,
		Email:            acct.Email,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if acct.LastResponse != nil && len(acct.LastResponse.RawJSON) > 0 {
		out.Raw = json.RawMessage(acct.LastResponse.RawJSON)
	}
	return out
}

func toAmounts(in []*stripe.Amount) []Amount {
	out := make([]Amount, 0, len(in))
	for _, a := range in {
		if a == nil {
			continue
		}
		out = append(out, Amount{Amount: a.Amount, Currency: string(a.Currency)})
	}
	return out
}
