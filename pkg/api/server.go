// Package api serves the cachescan decoders and the scan catalog over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Routes builds the router. /metrics is served from the default gatherer
// and is not protected by the API key.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	// API document (unprotected)
	r.Get("/swagger/doc.json", handleSwaggerDoc)

	m := s.metrics
	instrument := func(method, endpoint string, h http.HandlerFunc) http.HandlerFunc {
		if m == nil {
			return h
		}
		return m.InstrumentHandler(method, endpoint, h)
	}

	r.Route("/api/v1", func(r chi.Router) {
		auth := apiKeyMiddleware(s.config.APIKey)
		if m != nil {
			auth = m.InstrumentAuthMiddleware(auth)
		}
		r.Use(auth)

		r.Get("/health", instrument("GET", "/api/v1/health", s.handleHealth))

		// Codec
		r.Post("/direntry/decode", instrument("POST", "/api/v1/direntry/decode", s.handleDecodeDirEntry))
		r.Post("/direntry/offset", instrument("POST", "/api/v1/direntry/offset", s.handleSetOffset))
		r.Post("/header/decode", instrument("POST", "/api/v1/header/decode", s.handleDecodeHeader))

		// Catalog
		r.Get("/scans", instrument("GET", "/api/v1/scans", s.handleListScans))
		r.Post("/scans", instrument("POST", "/api/v1/scans", s.handleStartScan))
		r.Get("/scans/{id}", instrument("GET", "/api/v1/scans/{id}", s.handleGetScan))
		r.Get("/keys/{key}", instrument("GET", "/api/v1/keys/{key}", s.handleLookupKey))
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down gracefully
func StartServer(ctx context.Context, cat Catalog, config ServerConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := NewServer(cat, config, NewMetrics(), logger)

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar().Infow("starting cachescan API server", "addr", addr, "metrics", "/metrics")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down API server")
		return httpServer.Shutdown(shutdownCtx)
	}
}
