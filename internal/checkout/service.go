package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/internal/listings"
	"github.com/angelmondragon/staybook-backend/internal/orders"
	"github.com/angelmondragon/staybook-backend/internal/users"
	"github.com/angelmondragon/staybook-backend/pkg/config"
	"github.com/angelmondragon/staybook-backend/pkg/db"
	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	"github.com/angelmondragon/staybook-backend/pkg/metrics"
	"github.com/angelmondragon/staybook-backend/pkg/money"
	"github.com/angelmondragon/staybook-backend/pkg/stripe"
)

type sessionProcessor interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.Session, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.Session, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) (*stripe.Session, error)
}

type sessionReconciler interface {
	ReconcileSession(ctx context.Context, in orders.ReconcileInput) (orders.Result, error)
}

// Service stages hosted checkout sessions for buyers.
type Service interface {
	CreateSession(ctx context.Context, buyerID, listingID uuid.UUID) (string, error)
}

type ServiceParams struct {
	Users      *users.Repository
	Listings   *listings.Repository
	Processor  sessionProcessor
	Reconciler sessionReconciler
	Config     config.StripeConfig
	Metrics    *metrics.ReconcileMetrics
	Logger     *logger.Logger
}

type service struct {
	users      *users.Repository
	listings   *listings.Repository
	processor  sessionProcessor
	reconciler sessionReconciler
	cfg        config.StripeConfig
	metrics    *metrics.ReconcileMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the checkout session builder.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if params.Listings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "listings repository required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment processor required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		users:      params.Users,
		listings:   params.Listings,
		processor:  params.Processor,
		reconciler: params.Reconciler,
		cfg:        params.Config,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateSession opens a hosted checkout for the listing and stages it as the buyer's
// pending session. A previously staged session is reconciled when paid or expired when
// still open before it is replaced. No order is ever created for the new session here.
func (s *service) CreateSession(ctx context.Context, buyerID, listingID uuid.UUID) (string, error) {
	if listingID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "listing_id is required")
	}

	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		if db.IsNotFound(err) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}

	listing, err := s.listings.FindWithSeller(ctx, listingID)
	if err != nil {
		if db.IsNotFound(err) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.PostedBy == nil || !listing.PostedBy.HasPayoutAccount() {
		return "", pkgerrors.New(pkgerrors.CodePrecondition, "seller cannot accept payments yet").
			WithDetails(map[string]any{"listing_id": listingID.String()})
	}
	if listing.Price.IsNegative() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "listing price is invalid")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"buyer_id":   buyerID.String(),
		"listing_id": listingID.String(),
	})

	replaced, err := s.settlePrevious(ctx, buyer)
	if err != nil {
		return "", err
	}

	session, err := s.processor.CreateCheckoutSession(ctx, s.buildRequest(buyerID, listing))
	if err != nil {
		return "", err
	}

	snapshot, err := session.Snapshot()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session snapshot")
	}
	if err := s.users.SetPendingSession(ctx, buyerID, snapshot, s.now()); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "session_id", session.ID), "checkout session created but not staged", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stage checkout session")
	}

	s.metrics.IncSessionCreated(replaced)
	s.logg.Info(s.logg.WithField(ctx, "session_id", session.ID), "checkout session staged")
	return session.ID, nil
}

func (s *service) buildRequest(buyerID uuid.UUID, listing *models.Listing) stripe.CheckoutRequest {
	priceMinor := money.ToMinorUnits(listing.Price)
	req := stripe.CheckoutRequest{
		Currency:    s.cfg.Currency,
		ProductName: listing.Title,
		UnitAmount:  priceMinor,
		Destination: *listing.PostedBy.PayoutAccountID,
		SuccessURL:  strings.TrimRight(s.cfg.SuccessURL, "/") + "/" + listing.ID.String(),
		CancelURL:   s.cfg.CancelURL,
		Metadata: map[string]string{
			stripe.MetadataBuyerID:   buyerID.String(),
			stripe.MetadataListingID: listing.ID.String(),
		},
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}
	if s.cfg.ApplyApplicationFee {
		fee := money.PlatformFee(priceMinor, s.cfg.PlatformFeePercent)
		req.ApplicationFee = &fee
	}
	return req
}

// settlePrevious resolves the buyer's currently staged session, if any, and reports
// whether one existed.
func (s *service) settlePrevious(ctx context.Context, buyer *models.User) (bool, error) {
	ref, ok := buyer.PendingSessionRef()
	if !ok {
		return false, nil
	}
	logCtx := s.logg.WithField(ctx, "previous_session_id", ref.ID)

	prev, err := s.processor.RetrieveCheckoutSession(ctx, ref.ID)
	if err != nil {
		// The webhook still records the previous session if it is ever paid.
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "previous checkout session could not be verified")
		return true, nil
	}

	switch {
	case prev.IsPaid():
		listingID, err := uuid.Parse(prev.Metadata[stripe.MetadataListingID])
		if err != nil {
			s.logg.Warn(logCtx, "paid previous session has no listing metadata")
			return true, nil
		}
		if _, err := s.reconciler.ReconcileSession(ctx, orders.ReconcileInput{
			BuyerID:   buyer.ID,
			ListingID: listingID,
			Session:   prev,
			Source:    orders.SourceReplace,
		}); err != nil {
			return true, err
		}
	case prev.IsOpen():
		if _, err := s.processor.ExpireCheckoutSession(ctx, prev.ID); err != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "previous checkout session could not be expired")
		}
	}
	return true, nil
}
