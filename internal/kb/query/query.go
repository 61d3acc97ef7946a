// Package query implements the registry filter-chain façade of spec.md
// §6.4, grounded on the original source's SearchMemDB chain
// (SearchLabel/SearchName/SearchPropertyValue/... narrowing a result set
// one call at a time) but pushed down into SQL against the registry table
// instead of an in-process index, since the backing store already indexes
// path (gist), kind (btree), and properties (gin) — see
// internal/migrations/sql/0001_init.sql.
package query

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
	"github.com/glenn-edgar/kbcoord/internal/path"
)

// Query accumulates filter clauses. Each Search* method returns the same
// *Query so calls chain; Execute runs the accumulated filter once.
type Query struct {
	db         *sqlx.DB
	clauses    []string
	args       []interface{}
	err        error
}

// New starts an unfiltered chain over the registry table.
func New(db *sqlx.DB) *Query {
	return &Query{db: db}
}

func (q *Query) bind(clause string, arg interface{}) *Query {
	if q.err != nil {
		return q
	}
	q.args = append(q.args, arg)
	q.clauses = append(q.clauses, fmt.Sprintf(clause, len(q.args)))
	return q
}

// SearchLabel restricts to rows of the given kind ("KB_STATUS_FIELD" and
// friends map onto registry.Kind's enum values — see registry.Kind).
func (q *Query) SearchLabel(kind registry.Kind) *Query {
	return q.bind("kind = $%d", kind)
}

// SearchName restricts to rows with the given name.
func (q *Query) SearchName(name string) *Query {
	return q.bind("name = $%d", name)
}

// SearchPropertyKey restricts to rows whose properties object has key k.
func (q *Query) SearchPropertyKey(key string) *Query {
	return q.bind("properties ? $%d", key)
}

// SearchPropertyValue restricts to rows whose properties object contains
// {key: value} (Postgres jsonb containment, spec.md §6.1).
func (q *Query) SearchPropertyValue(key string, value interface{}) *Query {
	if q.err != nil {
		return q
	}
	frag := jsonb.Map{key: value}
	q.args = append(q.args, frag)
	q.clauses = append(q.clauses, fmt.Sprintf("properties @> $%d", len(q.args)))
	return q
}

// SearchPath restricts to rows matching a path expression: an exact
// dotted path, or a wildcard pattern using "*"/"**" as accepted by
// path.MatchWildcard, translated to an lquery match (spec.md §6.4).
func (q *Query) SearchPath(expr string) *Query {
	if q.err != nil {
		return q
	}
	if _, err := path.Parse(expr); err == nil {
		return q.bind("path = $%d::ltree", expr)
	}
	lq := path.ToLquery(expr)
	return q.bind("path ~ $%d::lquery", lq)
}

// Execute runs the accumulated filter and returns matching registry rows,
// ordered by path.
func (q *Query) Execute(ctx context.Context) ([]registry.Entry, error) {
	if q.err != nil {
		return nil, q.err
	}
	sqlText := `SELECT id, kind, name, properties, data, path::text AS path FROM registry`
	if len(q.clauses) > 0 {
		sqlText += " WHERE "
		for i, c := range q.clauses {
			if i > 0 {
				sqlText += " AND "
			}
			sqlText += c
		}
	}
	sqlText += " ORDER BY path"

	var rows []registry.Entry
	if err := q.db.SelectContext(ctx, &rows, sqlText, q.args...); err != nil {
		return nil, apperror.NewStoreError("query execute", err)
	}
	return rows, nil
}

// FindDescription reads the conventional "description" property from a
// row already in hand (spec.md §6.4) — no store round-trip.
func FindDescription(e registry.Entry) (string, bool) {
	return e.Properties.Description()
}

// FindDescriptionPaths executes a query and returns {path -> data} for
// every matching row, a bulk-introspection shape used by diagnostic
// tooling (spec.md §6.4).
func FindDescriptionPaths(ctx context.Context, q *Query) (map[string]jsonb.Map, error) {
	rows, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]jsonb.Map, len(rows))
	for _, r := range rows {
		out[r.Path] = r.Data
	}
	return out, nil
}
