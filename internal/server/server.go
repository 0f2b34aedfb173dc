// Package server exposes the clustering pipeline over HTTP.
package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/thebtf/textcluster/internal/config"
	"github.com/thebtf/textcluster/internal/events"
	"github.com/thebtf/textcluster/internal/pipeline"
)

// Server holds the router and the state shared by handlers. Config and limiter can be
// swapped at runtime by SetConfig.
type Server struct {
	version   string
	runner    *pipeline.Runner
	events    *events.Broadcaster
	router    chi.Router
	config    atomic.Pointer[config.Config]
	limiter   atomic.Pointer[rate.Limiter]
	startTime time.Time
}

// New builds a Server. A nil broadcaster disables the event stream.
func New(cfg *config.Config, runner *pipeline.Runner, ev *events.Broadcaster, version string) *Server {
	s := &Server{
		version:   version,
		runner:    runner,
		events:    ev,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	s.SetConfig(cfg)
	s.setupRoutes()
	return s
}

// SetConfig installs cfg as the request defaults and rebuilds the rate limiter.
func (s *Server) SetConfig(cfg *config.Config) {
	s.config.Store(cfg)
	if cfg.Server.RateLimit > 0 {
		s.limiter.Store(rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.Burst))
	} else {
		s.limiter.Store(nil)
	}
	log.Info().
		Str("algorithm", string(cfg.Cluster.Algorithm)).
		Float64("rate_limit", cfg.Server.RateLimit).
		Msg("Server configuration applied")
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config {
	return s.config.Load()
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.events != nil {
			// streamed uncompressed and unthrottled
			r.Get("/events", s.events.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Use(gzip)

			r.Get("/algorithms", s.handleAlgorithms)
			r.Get("/config", s.handleConfig)
			r.Post("/cluster", s.handleCluster)
			r.Post("/cluster/upload", s.handleUpload)
			r.Post("/sweep", s.handleSweep)
			r.Post("/frequencies", s.handleFrequencies)
		})
	})
}

func gzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// rateLimit rejects requests beyond the configured global rate with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l := s.limiter.Load(); l != nil && !l.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Kind: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
