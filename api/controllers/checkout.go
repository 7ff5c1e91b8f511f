package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/api/responses"
	"github.com/angelmondragon/staybook-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/staybook-backend/internal/checkout"
	"github.com/angelmondragon/staybook-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
)

type listingRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// OrderConfirmer records the buyer's pending session once the processor reports it paid.
type OrderConfirmer interface {
	ConfirmAndRecord(ctx context.Context, buyerID, listingID uuid.UUID) (orders.Result, error)
}

// CheckoutCreateSession stages a hosted checkout session for the listing.
func CheckoutCreateSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, listingID, err := decodeListingRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := svc.CreateSession(r.Context(), buyerID, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{SessionID: sessionID})
	}
}

// CheckoutConfirm answers 200 with success=false and status nothing_pending when the buyer
// has no staged session.
func CheckoutConfirm(svc OrderConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		buyerID, listingID, err := decodeListingRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ConfirmAndRecord(r.Context(), buyerID, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func decodeListingRequest(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	buyerID, err := userIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	var payload listingRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	listingID, err := uuid.Parse(payload.ListingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "listing_id must be a valid uuid")
	}
	return buyerID, listingID, nil
}
