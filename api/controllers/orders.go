package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/api/responses"
	"github.com/angelmondragon/staybook-backend/api/validators"
	"github.com/angelmondragon/staybook-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
)

type OrderLister interface {
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, limit int) ([]orders.OrderDTO, error)
}

// OrdersList returns the caller's recorded orders, newest first.
func OrdersList(svc OrderLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		buyerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListBuyerOrders(r.Context(), buyerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
