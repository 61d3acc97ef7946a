// Package api exposes a read-only introspection surface over HTTP: the
// query façade, plus per-satellite list endpoints and the usual /healthz
// and /metrics, following the teacher's chi-router-plus-cors shape
// (cmd/*/main.go wiring chi.NewRouter(), cors.Handler, a versioned route
// group). This is an ambient convenience surface (SPEC_FULL.md §2.8): it
// carries no invariants of its own, only read access to the domain
// packages.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glenn-edgar/kbcoord/internal/kb/job"
	"github.com/glenn-edgar/kbcoord/internal/kb/query"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcclient"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcserver"
	"github.com/glenn-edgar/kbcoord/internal/kb/status"
	"github.com/glenn-edgar/kbcoord/internal/kb/stream"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

// Server holds the handles the router reads from. All fields are
// read-only collaborators; no handler in this package ever mutates store
// state.
type Server struct {
	DB       *sqlx.DB
	Metrics  *telemetry.Metrics
	Registry *prometheus.Registry

	Jobs       *job.Queue
	Streams    *stream.Stream
	Statuses   *status.Store
	RPCServers *rpcserver.Inbox
	RPCClients *rpcclient.Inbox
}

// NewRouter builds the chi.Mux the server listens on.
func NewRouter(s *Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Use(telemetry.InFlightRequests(s.Metrics))
	r.Use(telemetry.HTTPMetrics(s.Metrics))

	r.Get("/healthz", s.handleHealthz)
	if s.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/registry", s.handleRegistrySearch)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/streams", s.handleListStream)
		r.Get("/status", s.handleGetStatus)
		r.Get("/rpc-server/{state}", s.handleListRPCServer)
		r.Get("/rpc-client/waiting", s.handleListRPCClientWaiting)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRegistrySearch runs the query façade over ?kind=&name=&path=&
// property_key=&property_value= parameters. Parameters are all optional;
// property_value applies only together with property_key. An empty query
// set returns the whole registry.
func (s *Server) handleRegistrySearch(w http.ResponseWriter, r *http.Request) {
	q := query.New(s.DB)
	params := r.URL.Query()
	if kind := params.Get("kind"); kind != "" {
		q = q.SearchLabel(registry.Kind(kind))
	}
	if name := params.Get("name"); name != "" {
		q = q.SearchName(name)
	}
	if p := params.Get("path"); p != "" {
		q = q.SearchPath(p)
	}
	if key := params.Get("property_key"); key != "" {
		if value := params.Get("property_value"); value != "" {
			q = q.SearchPropertyValue(key, value)
		} else {
			q = q.SearchPropertyKey(key)
		}
	}
	rows, err := q.Execute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	p, limit, offset, ok := pathAndPage(w, r)
	if !ok {
		return
	}
	rows, err := s.Jobs.ListPending(r.Context(), p, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListStream(w http.ResponseWriter, r *http.Request) {
	p, limit, offset, ok := pathAndPage(w, r)
	if !ok {
		return
	}
	rows, err := s.Streams.List(r.Context(), p, stream.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	rec, err := s.Statuses.Get(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRPCServer(w http.ResponseWriter, r *http.Request) {
	p, limit, offset, ok := pathAndPage(w, r)
	if !ok {
		return
	}
	state := rpcserver.State(chi.URLParam(r, "state"))
	rows, err := s.RPCServers.ListByState(r.Context(), p, state, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListRPCClientWaiting(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	var clientPath *string
	if p := r.URL.Query().Get("path"); p != "" {
		clientPath = &p
	}
	rows, err := s.RPCClients.ListWaiting(r.Context(), clientPath, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func pathAndPage(w http.ResponseWriter, r *http.Request) (path string, limit, offset int, ok bool) {
	path = r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return "", 0, 0, false
	}
	limit, offset = pageParams(r)
	return path, limit, offset, true
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
