// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the registry over HTTP: the read surface, the
// mutating surface, the event log and a websocket change-nonce feed.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/eventdb"
	"github.com/mvp1983/lido-dao/log"
	"github.com/mvp1983/lido-dao/metrics"
	"github.com/mvp1983/lido-dao/state"
)

var (
	logger = log.WithContext("pkg", "api")

	metricRequests = metrics.LazyLoad(func() metrics.HistogramMeter {
		return metrics.Histogram("api_request_duration_ms", metrics.BucketHTTPReqs)
	})
)

// Server serves the registry API. Mutating requests are serialized and
// each successful one is committed to the persistent store before the
// response goes out.
type Server struct {
	mu sync.Mutex

	registry *registry.Registry
	state    *state.State
	events   *eventdb.EventDB
}

// New creates the API handler. events may be nil, disabling /events.
func New(reg *registry.Registry, st *state.State, events *eventdb.EventDB) http.Handler {
	server := &Server{registry: reg, state: st, events: events}

	router := mux.NewRouter()
	server.mountRegistry(router)
	server.mountSubscriptions(router)
	if events != nil {
		router.HandleFunc("/events", server.handleEvents).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	if metricsHandler := metrics.HTTPHandler(); metricsHandler != nil {
		router.PathPrefix("/metrics").Handler(metricsHandler)
	}

	return handlers.CompressHandler(requestLogger(router))
}

// commit runs a mutation and flushes the resulting state to disk.
// The server lock spans both so no mutation is lost between them.
func (s *Server) commit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return s.state.Stage().Commit()
}

func requestLogger(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		inner.ServeHTTP(w, r)
		elapsed := time.Since(started)
		metricRequests().Observe(elapsed.Milliseconds())
		logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "elapsed", elapsed)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := &eventdb.Filter{
		Name:   r.URL.Query().Get("name"),
		Limit:  queryUint(r, "limit"),
		Offset: queryUint(r, "offset"),
	}
	if opStr := r.URL.Query().Get("operator"); opStr != "" {
		op, err := parseUint(opStr)
		if err != nil {
			writeError(w, errs.NewInvalidArgument("invalid operator: %s", opStr))
			return
		}
		id := registry.ID(op)
		filter.Operator = &id
	}
	events, err := s.events.Query(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.InvalidArgument:
		status = http.StatusBadRequest
	case errs.InvariantViolation, errs.CapacityExceeded:
		status = http.StatusConflict
	case errs.Unauthorized:
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
