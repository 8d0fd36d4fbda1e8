package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/manager"
	"github.com/voxanet/netnode/pkg/metrics"
	"github.com/voxanet/netnode/pkg/types"
)

// Server is the admin HTTP surface: JSON request/response over chi,
// operating on the manager it wraps.
type Server struct {
	mgr    *manager.Manager
	http   *http.Server
	debug  bool
	logger zerolog.Logger
}

// NewServer builds the admin server for a manager.
func NewServer(mgr *manager.Manager, listenAddr string, debug bool) *Server {
	s := &Server{
		mgr:    mgr,
		debug:  debug,
		logger: log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/status/health", s.handleHealth)
	r.Get("/info/program-stats", s.handleStats)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/data", func(r chi.Router) {
		r.Post("/add-nri", s.handleAddNRI)
		r.Post("/add-rri", s.handleAddRRI)
		r.Get("/get-local-nri", s.handleGetLocalNRI)
		r.Get("/get-local-rri", s.handleGetLocalRRI)
	})

	r.Route("/apps", func(r chi.Router) {
		r.Post("/deploy", s.handleDeployApp)
		r.Post("/scale", s.handleScaleApp)
		r.Post("/stop", s.handleStopApp)
		r.Get("/status/{id}", s.handleAppStatus)
	})

	// Test surface is only exposed with the debug flag
	if debug {
		r.Route("/test", func(r chi.Router) {
			r.Post("/request-factory", s.handleRequestFactory)
			r.Post("/send-artifact", s.handleSendArtifact)
		})
	}

	s.http = &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Stop. Blocks.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.http.Addr).Bool("debug", s.debug).Msg("admin API listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// observe wraps every request with API metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

// writeJSON emits a JSON document with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds onto the admin status-code contract:
// 400 bad request, 404 unknown id, 409 already exists, 422 validation,
// 500 internal.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON parses a request body, mapping malformed JSON to 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body: " + err.Error()})
		return false
	}
	return true
}
