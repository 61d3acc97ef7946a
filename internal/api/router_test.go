package api_test

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/api"
	"github.com/glenn-edgar/kbcoord/internal/kb/job"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcclient"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcserver"
	"github.com/glenn-edgar/kbcoord/internal/kb/status"
	"github.com/glenn-edgar/kbcoord/internal/kb/stream"
)

func newServer(t *testing.T) (*api.Server, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return &api.Server{
		DB:         db,
		Jobs:       job.New(db),
		Streams:    stream.New(db),
		Statuses:   status.New(db),
		RPCServers: rpcserver.New(db),
		RPCClients: rpcclient.New(db),
	}, mock
}

func TestHealthz_ReportsOKWhenDBReachable(t *testing.T) {
	s, mock := newServer(t)
	mock.ExpectPing()

	router := api.NewRouter(s)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRegistrySearch_ExecutesUnfilteredQueryByDefault(t *testing.T) {
	s, mock := newServer(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, kind, name, properties, data, path::text AS path FROM registry ORDER BY path`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "name", "properties", "data", "path"}))

	router := api.NewRouter(s)
	req := httptest.NewRequest(http.MethodGet, "/v1/registry", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestGetStatus_RequiresPathParam(t *testing.T) {
	s, _ := newServer(t)
	router := api.NewRouter(s)
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
