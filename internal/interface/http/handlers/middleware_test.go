package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func adminAuthForToken(t *testing.T, token string) *AdminAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminAuth(string(hash))
}

func callAdmin(auth *AdminAuth, configure func(*http.Request)) *httptest.ResponseRecorder {
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/seasons", nil)
	if configure != nil {
		configure(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuth_ValidToken(t *testing.T) {
	auth := adminAuthForToken(t, "s3cret")

	rec := callAdmin(auth, func(r *http.Request) {
		r.Header.Set("X-Admin-Token", "s3cret")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminAuth_BearerToken(t *testing.T) {
	auth := adminAuthForToken(t, "s3cret")

	rec := callAdmin(auth, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer s3cret")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminAuth_InvalidToken(t *testing.T) {
	auth := adminAuthForToken(t, "s3cret")

	rec := callAdmin(auth, func(r *http.Request) {
		r.Header.Set("X-Admin-Token", "wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth_MissingToken(t *testing.T) {
	auth := adminAuthForToken(t, "s3cret")

	rec := callAdmin(auth, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth_DisabledWithoutHash(t *testing.T) {
	auth := NewAdminAuth("")
	assert.False(t, auth.Enabled())

	rec := callAdmin(auth, func(r *http.Request) {
		r.Header.Set("X-Admin-Token", "anything")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCompositeHealthChecker(t *testing.T) {
	hc := NewCompositeHealthChecker("1.0.0")
	hc.AddCheck("ok", func(context.Context) error { return nil })
	hc.AddCheck("broken", func(context.Context) error { return errors.New("connection refused") })

	status := hc.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.Equal(t, "1.0.0", status.Version)
	require.Len(t, status.Checks, 2)
	assert.True(t, status.Checks["ok"].Healthy)
	assert.False(t, status.Checks["broken"].Healthy)
	assert.Contains(t, status.Checks["broken"].Message, "connection refused")
}

func TestCompositeHealthChecker_AllHealthy(t *testing.T) {
	hc := NewCompositeHealthChecker("1.0.0")
	hc.AddCheck("ok", func(context.Context) error { return nil })

	status := hc.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.NotEmpty(t, status.Uptime)
}
