// Package http implements the REST API of the season ranking service:
// public leaderboard reads and the administrative season lifecycle.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-live/season-ranking/internal/application/command"
	"github.com/lumen-live/season-ranking/internal/application/query"
	"github.com/lumen-live/season-ranking/internal/interface/http/handlers"
	"github.com/lumen-live/season-ranking/pkg/logger"
)

// Config holds the listener and middleware settings of the API server.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute caps requests per client IP. Zero disables the
	// limiter entirely.
	RateLimitPerMinute int

	// AdminTokenHash is the bcrypt hash the admin middleware verifies
	// tokens against. When empty the admin surface answers 403.
	AdminTokenHash string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
	}
}

// Address renders host:port for ListenAndServe.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dependencies carries the application-layer handlers the routes
// dispatch to, split the same way the application package is.
type Dependencies struct {
	GetLeaderboardHandler  *query.GetLeaderboardHandler
	GetCreatorRankHandler  *query.GetCreatorRankHandler
	GetSeasonStatusHandler *query.GetSeasonStatusHandler

	CreateSeasonHandler   *command.CreateSeasonHandler
	EndSeasonHandler      *command.EndSeasonHandler
	OverrideConfigHandler *command.OverrideConfigHandler
	RecalculateHandler    *command.RecalculateSeasonHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// Server is the HTTP front of the ranking service.
type Server struct {
	config    Config
	deps      Dependencies
	inner     *http.Server
	logger    *logger.Logger
	adminAuth *handlers.AdminAuth
	limiter   *ipRateLimiter

	running   atomic.Bool
	startedAt time.Time
}

// NewServer builds the router, the middleware chain and the underlying
// http.Server. Nothing listens until Start.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config:    config,
		deps:      deps,
		logger:    deps.Logger,
		adminAuth: handlers.NewAdminAuth(config.AdminTokenHash),
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = newIPRateLimiter(config.RateLimitPerMinute)
	}

	s.inner = &http.Server{
		Addr:           config.Address(),
		Handler:        s.wrap(s.routes()),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth) // Kubernetes alias
	mux.HandleFunc("GET /live", s.handleLive)
	mux.HandleFunc("GET /", s.handleRoot)

	// Public read surface.
	mux.HandleFunc("GET /api/v1/leaderboard", s.handleGetLeaderboard)
	mux.HandleFunc("GET /api/v1/creators/{id}/rank", s.handleGetCreatorRank)
	mux.HandleFunc("GET /api/v1/seasons/current", s.handleGetCurrentSeason)
	mux.HandleFunc("GET /api/v1/seasons/{id}", s.handleGetSeason)

	// Admin surface, token-gated as a whole.
	admin := http.NewServeMux()
	admin.HandleFunc("POST /api/v1/admin/seasons", s.handleCreateSeason)
	admin.HandleFunc("POST /api/v1/admin/seasons/{id}/end", s.handleEndSeason)
	admin.HandleFunc("PUT /api/v1/admin/seasons/{id}/config", s.handleOverrideConfig)
	admin.HandleFunc("POST /api/v1/admin/recalculations", s.handleTriggerRecalculation)
	admin.HandleFunc("GET /api/v1/admin/recalculations/last", s.handleLastRecalculation)
	mux.Handle("/api/v1/admin/", s.adminAuth.Middleware(admin))

	return mux
}

// wrap layers the middleware so that the limiter rejects cheapest and
// earliest, and recovery sits closest to the handlers.
func (s *Server) wrap(h http.Handler) http.Handler {
	h = s.withRequestID(h)
	h = s.withAccessLog(h)
	h = s.withRecovery(h)
	if s.config.EnableCORS {
		h = s.withCORS(h)
	}
	if s.limiter != nil {
		h = s.withRateLimit(h)
	}
	return h
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
			logger.String("request_id", requestIDFrom(r.Context())),
		)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic recovered",
					logger.F("error", p),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", requestIDFrom(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError,
					"internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests,
				"rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start listens and blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}
	s.startedAt = time.Now()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.inner.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine and reports its outcome on the
// returned channel, which closes when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.inner.Shutdown(ctx)
}

// Uptime returns how long the server has been serving, zero if stopped.
func (s *Server) Uptime() time.Duration {
	if !s.running.Load() {
		return 0
	}
	return time.Since(s.startedAt)
}

// JSONResponse is the envelope every endpoint answers with.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta annotates successful responses.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	FromCache bool      `json:"from_cache,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSONWithMeta(w, status, data, nil)
}

func writeJSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	sendEnvelope(w, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	sendEnvelope(w, status, JSONResponse{
		Error: &APIError{Code: code, Message: message},
		Meta:  &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

func sendEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

type contextKey string

const contextKeyRequestID contextKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// clientIP trusts X-Forwarded-For first since the service sits behind
// the platform ingress, then falls back to the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getQueryParam(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func getQueryParamInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getQueryParamBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// ipRateLimiter is a sliding-window counter per client IP. The window
// is fixed at one minute; counts from the previous minute are weighted
// by how much of it still overlaps the window, which avoids keeping a
// timestamp per request.
type ipRateLimiter struct {
	mu    sync.Mutex
	limit int
	slots map[string]*rateSlot
}

type rateSlot struct {
	minute int64 // unix minute of the current bucket
	curr   int
	prev   int
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	return &ipRateLimiter{
		limit: perMinute,
		slots: make(map[string]*rateSlot),
	}
}

func (l *ipRateLimiter) allow(key string, now time.Time) bool {
	minute := now.Unix() / 60

	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = &rateSlot{minute: minute}
		l.slots[key] = slot
	}

	switch {
	case slot.minute == minute:
		// same bucket
	case slot.minute == minute-1:
		slot.prev, slot.curr = slot.curr, 0
		slot.minute = minute
	default:
		slot.prev, slot.curr = 0, 0
		slot.minute = minute
	}

	// Fraction of the previous minute still inside the window.
	carry := 1.0 - float64(now.Unix()%60)/60.0
	estimated := float64(slot.curr) + carry*float64(slot.prev)
	if estimated >= float64(l.limit) {
		return false
	}

	slot.curr++

	// Opportunistic eviction of idle entries.
	if len(l.slots) > 4096 {
		for k, s := range l.slots {
			if s.minute < minute-1 {
				delete(l.slots, k)
			}
		}
	}
	return true
}
