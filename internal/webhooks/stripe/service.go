package stripewebhook

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/staybook-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	pstripe "github.com/angelmondragon/staybook-backend/pkg/stripe"
)

type sessionReconciler interface {
	ReconcileSession(ctx context.Context, in orders.ReconcileInput) (orders.Result, error)
}

type ServiceParams struct {
	Reconciler sessionReconciler
	Logger     *logger.Logger
}

// Service turns checkout completion events into recorded orders.
type Service struct {
	reconciler sessionReconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order reconciler required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent reconciles completed checkout sessions. Unrelated event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		return nil
	}

	session, err := pstripe.DecodeSession(event.Data.Raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}

	buyerID, err := uuid.Parse(session.Metadata[pstripe.MetadataBuyerID])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session buyer metadata missing").
			WithDetails(map[string]any{"session_id": session.ID})
	}
	listingID, err := uuid.Parse(session.Metadata[pstripe.MetadataListingID])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session listing metadata missing").
			WithDetails(map[string]any{"session_id": session.ID})
	}

	res, err := s.reconciler.ReconcileSession(ctx, orders.ReconcileInput{
		BuyerID:   buyerID,
		ListingID: listingID,
		Session:   session,
		Source:    orders.SourceWebhook,
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"session_id": session.ID,
			"status":     string(res.Status),
		}), "checkout event handled")
	}
	return nil
}
