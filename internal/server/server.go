package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/outofoffice/internal/handler"
	"github.com/dukerupert/outofoffice/internal/middleware"
	"github.com/dukerupert/outofoffice/internal/outofoffice"
	"github.com/dukerupert/outofoffice/internal/store"
	ws "github.com/dukerupert/outofoffice/internal/websocket"
)

type Options struct {
	// Location is the zone calendar dates are interpreted in.
	Location *time.Location
	// RateLimit is the number of mutating RPCs allowed per caller per minute.
	RateLimit int
	// AllowedOrigins are extra host patterns accepted for websocket upgrades.
	AllowedOrigins []string
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	oooH           *handler.OutOfOfficeHandler
	sessionStore   *store.SessionStore
	userStore      *store.UserStore
	rateLimiter    *middleware.RateLimiter
	rateLimit      int
	allowedOrigins []string
	logger         *slog.Logger
}

// New wires stores, the out of office service and its handlers. notifier may
// be nil to disable delegate emails.
func New(db *sql.DB, notifier outofoffice.Notifier, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	entryStore := store.NewOutOfOfficeStore(db)

	svcOpts := []outofoffice.Option{
		outofoffice.WithBroadcaster(hub),
		outofoffice.WithLogger(logger),
	}
	if opts.Location != nil {
		svcOpts = append(svcOpts, outofoffice.WithLocation(opts.Location))
	}
	svc := outofoffice.NewService(entryStore, userStore, notifier, svcOpts...)

	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = 30
	}

	return &Server{
		db:             db,
		hub:            hub,
		oooH:           handler.NewOutOfOfficeHandler(svc, logger),
		sessionStore:   sessionStore,
		userStore:      userStore,
		rateLimiter:    middleware.NewRateLimiter(),
		rateLimit:      rateLimit,
		allowedOrigins: opts.AllowedOrigins,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.Handle("POST /rpc/outOfOffice.create", s.protected(s.rateLimited(s.oooH.Create)))
	mux.Handle("POST /rpc/outOfOffice.delete", s.protected(s.rateLimited(s.oooH.Delete)))
	mux.Handle("GET /rpc/outOfOffice.list", s.protected(s.oooH.List))
	mux.Handle("POST /rpc/outOfOffice.list", s.protected(s.oooH.List))

	mux.Handle("GET /ws", s.protected(ws.HandleWebSocket(s.hub, s.allowedOrigins, s.logger.With("component", "websocket"))))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.Metrics(logged)
}

// AdminRouter serves operational endpoints meant for a private listener.
func (s *Server) AdminRouter() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /readyz", s.readyHandler)
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.sessionStore, s.userStore, s.logger.With("component", "auth"))(h)
}

// rateLimited must run inside protected so the caller key is the user.
func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.CallerKey, s.rateLimit, time.Minute)(h).ServeHTTP
}
