package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"session_id": "cs_1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"session_id":"cs_1"}}`, w.Body.String())
}

func TestWriteErrorMapsCodes(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
		details bool
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "listing_id is required"), http.StatusBadRequest, "listing_id is required", false},
		{pkgerrors.New(pkgerrors.CodePrecondition, "seller cannot accept payments yet").WithDetails(map[string]any{"action": "onboard"}), http.StatusPreconditionFailed, "seller cannot accept payments yet", true},
		{pkgerrors.New(pkgerrors.CodePaymentProvider, "stripe: card declined").WithDetails(map[string]any{"operation": "checkout.create"}), http.StatusBadGateway, "payment provider unavailable", true},
		{pkgerrors.New(pkgerrors.CodeNotFound, "listing not found"), http.StatusNotFound, "listing not found", false},
		{errors.New("boom"), http.StatusInternalServerError, "internal server error", false},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, tc.err)

		assert.Equal(t, tc.status, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, tc.message, body.Error.Message)
		assert.Equal(t, tc.details, body.Error.Details != nil)
	}
}
