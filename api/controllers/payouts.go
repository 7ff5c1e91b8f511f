package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/api/responses"
	"github.com/angelmondragon/staybook-backend/internal/users"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	"github.com/angelmondragon/staybook-backend/pkg/stripe"
	"github.com/angelmondragon/staybook-backend/pkg/types"
)

// PayoutsService is the seller account surface exposed over HTTP.
type PayoutsService interface {
	CreateOrEnsureAccount(ctx context.Context, sellerID uuid.UUID) (string, error)
	GetAccountStatus(ctx context.Context, sellerID uuid.UUID) (*users.UserDTO, error)
	GetAccountBalance(ctx context.Context, sellerID uuid.UUID) (*stripe.Balance, error)
	GetPayoutSettingsLink(ctx context.Context, sellerID uuid.UUID) (string, error)
}

// PayoutsOnboard returns a fresh onboarding link, creating the connected account first if needed.
func PayoutsOnboard(svc PayoutsService, logg *logger.Logger) http.HandlerFunc {
	return sellerURLHandler(svc, logg, func(ctx context.Context, sellerID uuid.UUID) (string, error) {
		return svc.CreateOrEnsureAccount(ctx, sellerID)
	})
}

// PayoutsSettingsLink returns a login link to the connected account dashboard.
func PayoutsSettingsLink(svc PayoutsService, logg *logger.Logger) http.HandlerFunc {
	return sellerURLHandler(svc, logg, func(ctx context.Context, sellerID uuid.UUID) (string, error) {
		return svc.GetPayoutSettingsLink(ctx, sellerID)
	})
}

func PayoutsStatus(svc PayoutsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		sellerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		seller, err := svc.GetAccountStatus(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, seller)
	}
}

// PayoutsBalance never answers with a zero balance when the processor call fails.
func PayoutsBalance(svc PayoutsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		sellerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetAccountBalance(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func sellerURLHandler(svc PayoutsService, logg *logger.Logger, fn func(ctx context.Context, sellerID uuid.UUID) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		sellerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		url, err := fn(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.URLPayload{URL: url})
	}
}
