// Package server exposes the lookup engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/ipintel-client/pkg/batch"
	"github.com/Sternrassler/ipintel-client/pkg/credential"
	"github.com/Sternrassler/ipintel-client/pkg/logging"
	"github.com/Sternrassler/ipintel-client/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBatchBody caps POST /v1/batches request bodies.
const maxBatchBody = 4 << 20

// Server serves single lookups and streaming batches. Batches share one
// Coordinator, so a new batch supersedes the running one.
type Server struct {
	coordinator *batch.Coordinator
	credentials credential.Provider
	newLookuper batch.LookuperFactory
	logger      zerolog.Logger
}

// New creates a server. factory builds the lookup client for single lookups;
// batches use the coordinator's executor.
func New(coordinator *batch.Coordinator, credentials credential.Provider, factory batch.LookuperFactory) *Server {
	return &Server{
		coordinator: coordinator,
		credentials: credentials,
		newLookuper: factory,
		logger:      logging.NewLogger("server"),
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ip/{ip}", s.lookupIP)
		r.Post("/batches", s.runBatch)
		r.Delete("/batches/active", s.stopBatch)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then stops the active batch and
// shuts the listener down.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	s.coordinator.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
