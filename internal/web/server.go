// Package web serves the catalog import API and the shop state endpoints.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/shop"
	"github.com/JonMunkholm/catalog/internal/web/middleware"
)

// ImageUploader stores product images.
type ImageUploader interface {
	Upload(ctx context.Context, contentType string, body io.Reader, size int64) (string, error)
	MaxSize() int64
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the catalog service.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	shop     *shop.Store
	images   ImageUploader
	health   Pinger
	validate *validator.Validate

	router   *chi.Mux
	server   *http.Server
	limiters []*middleware.KeyedRateLimiter
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithShop enables the cart and favorites routes.
func WithShop(store *shop.Store) Option {
	return func(s *Server) { s.shop = store }
}

// WithImages enables POST /api/upload.
func WithImages(images ImageUploader) Option {
	return func(s *Server) { s.images = images }
}

// WithHealthCheck makes /healthz ping the store.
func WithHealthCheck(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

// NewServer creates a Server. Routes for missing optional dependencies
// answer 404.
func NewServer(cfg *config.Config, service *core.Service, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		service:  service,
		validate: newValidator(),
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.RequestMetadata)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if len(s.cfg.Security.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Security.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	if s.cfg.Rate.Enabled {
		s.router.Use(middleware.RateLimit(s.newLimiter(s.cfg.Rate.RequestsPerMinute)))
	}

	// Event streams stay open, so they skip the request timeout.
	timeout := chimw.Timeout(s.cfg.Server.RequestTimeout)
	s.router.Use(func(next http.Handler) http.Handler {
		withTimeout := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/events") || s.cfg.Server.RequestTimeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			withTimeout.ServeHTTP(w, r)
		})
	})
}

func (s *Server) newLimiter(perMinute int) *middleware.KeyedRateLimiter {
	l := middleware.NewKeyedRateLimiter(perMinute)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/imports/status", s.handleImportStatus)

		// Writes to the catalog and the image bucket need an API key.
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.cfg.Security))
			if s.cfg.Rate.Enabled {
				r.Use(middleware.RateLimit(s.newLimiter(s.cfg.Rate.UploadLimit)))
			}

			r.Post("/products/sheets", s.handleListSheets)
			r.Post("/products/parse", s.handleParse)
			r.Post("/products/preview", s.handlePreview)
			r.Post("/products/import", s.handleImport)
			r.Post("/products/bulk-import", s.handleBulkImport)
			r.Post("/upload", s.handleImageUpload)
		})

		r.Route("/cart/{owner}", func(r chi.Router) {
			r.Get("/", s.handleGetCart)
			r.Delete("/", s.handleClearCart)
			r.Post("/items", s.handleAddToCart)
			r.Patch("/items/{productID}", s.handleUpdateQuantity)
			r.Delete("/items/{productID}", s.handleRemoveFromCart)
			r.Put("/open", s.handleSetCartOpen)
			r.Get("/events", s.handleCartEvents)
		})

		r.Get("/favorites/{owner}", s.handleGetFavorites)
		r.Post("/favorites/{owner}/{productID}/toggle", s.handleToggleFavorite)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", slog.String("addr", s.server.Addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Limiter().Status())
}

// writeJSON encodes v with status. Encoding errors are logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", slog.String("error", err.Error()))
	}
}
