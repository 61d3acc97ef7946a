package query_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/kb/query"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return db, mock
}

var entryCols = []string{"id", "kind", "name", "properties", "data", "path"}

func TestExecute_ChainsLabelAndName(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE kind = $1 AND name = $2 ORDER BY path`)).
		WithArgs(registry.KindJob, "worker").
		WillReturnRows(sqlmock.NewRows(entryCols).AddRow(int64(1), "JOB", "worker", []byte(`{}`), []byte(`{}`), "a.worker"))

	rows, err := query.New(db).SearchLabel(registry.KindJob).SearchName("worker").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestSearchPath_ExactMatchUsesLtreeEquality(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE path = $1::ltree ORDER BY path`)).
		WithArgs("a.b.c").
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := query.New(db).SearchPath("a.b.c").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestSearchPath_WildcardUsesLquery(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE path ~ $1::lquery ORDER BY path`)).
		WithArgs("a.*{1}.c").
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := query.New(db).SearchPath("a.*.c").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestSearchPropertyValue_UsesJSONBContainment(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE properties @> $1 ORDER BY path`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := query.New(db).SearchPropertyValue("description", "worker queue").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestFindDescriptionPaths_IndexesByPath(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY path`)).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(int64(1), "JOB", "w", []byte(`{}`), []byte(`{"n":1}`), "a.w"))

	out, err := query.FindDescriptionPaths(context.Background(), query.New(db))
	if err != nil {
		t.Fatalf("FindDescriptionPaths: %v", err)
	}
	if _, ok := out["a.w"]; !ok {
		t.Errorf("expected a.w in result, got %v", out)
	}
}
