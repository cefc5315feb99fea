// Package http serves the ledger as a JSON API for an external front end.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"khata/internal/cache"
	"khata/internal/ledger"
	"khata/internal/log"
	"khata/internal/services"
)

// Config wires the server to its collaborators.
type Config struct {
	Addr     string
	Store    *ledger.Store
	Importer *services.ImportService
	Logger   *log.Logger

	DashboardCacheTTL time.Duration
	RecentLimit       int
	DebtorsLimit      int
	// WritesPerMinute caps mutating requests per client; zero means 60.
	WritesPerMinute int
}

type Server struct {
	http.Server
	store    *ledger.Store
	importer *services.ImportService
	logger   *log.Logger

	recentLimit  int
	debtorsLimit int

	dashboardCache *cache.LRUCache[dashboardResponse]
	cacheManager   *cache.Manager
	rateLimiter    *rateLimiter
	shutdownOnce   sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	writes := cfg.WritesPerMinute
	if writes <= 0 {
		writes = 60
	}

	s := &Server{
		store:          cfg.Store,
		importer:       cfg.Importer,
		logger:         logger.WithComponent(log.ComponentHTTP),
		recentLimit:    cfg.RecentLimit,
		debtorsLimit:   cfg.DebtorsLimit,
		dashboardCache: cache.NewLRUCache[dashboardResponse](32, cfg.DashboardCacheTTL),
		cacheManager:   cache.NewManager(),
		rateLimiter:    newRateLimiter(writes),
	}
	s.cacheManager.Register(s.dashboardCache)
	s.cacheManager.StartCleanup(context.Background(), time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/users", s.handleUsers)
	mux.HandleFunc("PUT /api/session/user", s.handleSwitchUser)
	mux.HandleFunc("GET /api/customers", s.handleListCustomers)
	mux.HandleFunc("POST /api/customers", s.handleAddCustomer)
	mux.HandleFunc("GET /api/customers/{id}", s.handleCustomerDetail)
	mux.HandleFunc("DELETE /api/customers/{id}", s.handleRemoveCustomer)
	mux.HandleFunc("POST /api/customers/{id}/transactions", s.handleAddTransaction)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/import/url", s.handleImportURL)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withRequestID(log.Middleware(s.logger, requestIDFromHeader)(s.withSecurity(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func requestIDFromHeader(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// withRequestID stamps the request and the response with one request id.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		r.Header.Set("X-Request-ID", id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// withSecurity adds security headers and rate limits writes.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			clientIP := extractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status           string `json:"status"`
		ImportInProgress bool   `json:"importInProgress"`
	}{Status: "ok", ImportInProgress: s.importer.InProgress()})
}
