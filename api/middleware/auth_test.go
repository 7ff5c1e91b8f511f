package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/staybook-backend/pkg/auth"
	"github.com/angelmondragon/staybook-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "staybook", ExpirationMinutes: 60}
}

func captureUser(t *testing.T, cfg config.JWTConfig, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var user string
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp, user
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	cfg := testJWTConfig()
	for _, header := range []string{"", "Bearer ", "Bearer invalid"} {
		resp, user := captureUser(t, cfg, header)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "header %q", header)
		assert.Empty(t, user)
	}
}

func TestAuthSeedsUserID(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Email:  "guest@example.com",
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)

	resp, user := captureUser(t, cfg, "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID.String(), user)

	resp, _ = captureUser(t, config.JWTConfig{Secret: "other", Issuer: "staybook", ExpirationMinutes: 60}, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, "req-1", resp.Header().Get(requestIDHeader))

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, resp.Header().Get(requestIDHeader))
}

func TestRecovererReturnsInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
