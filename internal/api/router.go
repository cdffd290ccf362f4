package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/onroad-manager/internal/params"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/system", s.handleSystem)
		r.Handle("/metrics", s.metrics)

		r.Route("/params", func(r chi.Router) {
			r.Get("/", s.handleListParams)
			r.Get("/{key}", s.handleGetParam)
		})

		wsPath := s.wsCfg.Path
		if wsPath == "" {
			wsPath = "/ws"
		}
		r.Get(wsPath, s.handleWebSocket)
	})

	return r
}

// handleHealth reports ok when every registered check passes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	healthy := true
	for name, c := range s.checks {
		if err := c.HealthCheck(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	code, state := http.StatusOK, "ok"
	if !healthy {
		code, state = http.StatusServiceUnavailable, "degraded"
	}
	writeJSON(w, code, map[string]any{
		"status":  state,
		"version": s.version,
		"checks":  checks,
	})
}

// handleStatus returns the last published managerState.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.latest.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "no managerState published yet")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ParamEntry is one key of the primary partition.
type ParamEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// handleListParams returns every set key in key order, with DontLog values redacted.
func (s *Server) handleListParams(w http.ResponseWriter, r *http.Request) {
	view, err := s.params.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("params snapshot failed", "error", err)
		writeInternalError(w, "failed to read params")
		return
	}

	keys := view.Keys()
	table := s.params.Table()
	entries := make([]ParamEntry, 0, len(keys))
	for _, k := range keys {
		v, _ := view.Get(k)
		entries = append(entries, ParamEntry{Key: k, Value: params.Redact(table, k, v)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"params": entries,
		"count":  len(entries),
	})
}

// handleGetParam returns one key. Unknown keys and unset keys are both 404,
// with different codes.
func (s *Server) handleGetParam(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, ok, err := s.params.Get(r.Context(), key)
	switch {
	case errors.Is(err, params.ErrUnknownKey):
		writeError(w, http.StatusNotFound, ErrCodeUnknownKey, "unknown key: "+key)
		return
	case err != nil:
		s.logger.Error("params get failed", "key", key, "error", err)
		writeInternalError(w, "failed to read param")
		return
	case !ok:
		writeNotFound(w, "key not set: "+key)
		return
	}
	writeJSON(w, http.StatusOK, ParamEntry{Key: key, Value: params.Redact(s.params.Table(), key, v)})
}
