package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// AdminAuth authenticates the administrative endpoints with a single
// bearer token. Only the bcrypt hash of the token is configured; the
// plaintext never touches disk or environment dumps.
type AdminAuth struct {
	tokenHash []byte
}

// NewAdminAuth creates an authenticator from a bcrypt token hash.
// An empty hash disables admin endpoints entirely.
func NewAdminAuth(tokenHash string) *AdminAuth {
	return &AdminAuth{tokenHash: []byte(tokenHash)}
}

// Enabled reports whether a token hash is configured.
func (a *AdminAuth) Enabled() bool {
	return len(a.tokenHash) > 0
}

// IsValid checks a presented token against the configured hash.
func (a *AdminAuth) IsValid(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)) == nil
}

// Middleware returns an HTTP middleware guarding admin routes.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			http.Error(w, `{"error":"admin_disabled","message":"Admin API is not configured"}`, http.StatusForbidden)
			return
		}

		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if token == "" {
			http.Error(w, `{"error":"missing_token","message":"Admin token is required"}`, http.StatusUnauthorized)
			return
		}

		if !a.IsValid(token) {
			http.Error(w, `{"error":"invalid_token","message":"Invalid admin token"}`, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMEOUT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TimeoutMiddleware adds a timeout to request contexts.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
