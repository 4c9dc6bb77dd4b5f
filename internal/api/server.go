package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"vidfetch/pkg/models"
)

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
)

// Version is reported by /api/status
var Version = "dev"

// InfoService resolves a URL to its tier menu
type InfoService interface {
	GetVideoInfo(ctx context.Context, url string) (*models.VideoMetadata, error)
}

// DownloadService fetches media and resolves stored files
type DownloadService interface {
	Download(ctx context.Context, url, quality string) (*models.DownloadResult, error)
	ResolveFile(name string) (string, error)
	GetActiveDownloads() int
	Stats() (completed, failed int64)
}

// CacheStats is implemented by caches that can report their size
type CacheStats interface {
	Len() int
}

// Server represents the HTTP server
type Server struct {
	config    models.ServerConfig
	info      InfoService
	downloads DownloadService
	cache     CacheStats
	logger    *slog.Logger
	limiter   *rate.Limiter
	router    *chi.Mux
	server    *http.Server
	listener  net.Listener
	running   bool
	startedAt time.Time
	mu        sync.RWMutex
}

// NewServer creates a new HTTP server. cache may be nil.
func NewServer(cfg models.ServerConfig, info InfoService, downloads DownloadService, cache CacheStats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		info:      info,
		downloads: downloads,
		cache:     cache,
		logger:    logger.With("component", "api"),
		router:    chi.NewRouter(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.setupRoutes()

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Group(func(r chi.Router) {
			r.Use(s.requestTimeout)
			r.Get("/health", s.handleHealth)
			r.Get("/status", s.handleStatus)
			r.Post("/video-info", s.handleVideoInfo)
		})

		// transfers are bounded by engine.downloadTimeout, not the request timeout
		r.Post("/download", s.handleDownload)
		r.Get("/download/{filename}", s.handleServeFile)
	})

	if s.config.StaticDir != "" {
		s.router.With(s.requestTimeout).Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// requestTimeout applies server.requestTimeout when one is configured
func (s *Server) requestTimeout(next http.Handler) http.Handler {
	if s.config.RequestTimeout <= 0 {
		return next
	}
	return middleware.Timeout(s.config.RequestTimeout)(next)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	addr := s.GetAddr()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	// no WriteTimeout: downloads stream for as long as the engine runs and
	// the Timeout middleware bounds handler time instead
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = httpServer
	s.running = true
	s.startedAt = time.Now()

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	s.logger.Info("server listening", "addr", listener.Addr().String())
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServerNotRunning
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.running = false
	s.server = nil
	s.listener = nil

	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetAddr returns the configured listen address
func (s *Server) GetAddr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// GetActualAddr returns the actual listening address (useful when port is 0)
func (s *Server) GetActualAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.GetAddr()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles status endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	running := s.running
	startedAt := s.startedAt
	s.mu.RUnlock()

	completed, failed := s.downloads.Stats()

	response := map[string]interface{}{
		"running":            running,
		"activeDownloads":    s.downloads.GetActiveDownloads(),
		"completedDownloads": completed,
		"failedDownloads":    failed,
		"version":            Version,
	}
	if s.cache != nil {
		response["cacheEntries"] = s.cache.Len()
	}
	if running {
		response["uptime"] = time.Since(startedAt).Round(time.Second).String()
	}

	writeJSON(w, http.StatusOK, response)
}
