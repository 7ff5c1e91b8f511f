package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user id")
	}
	return id, nil
}
