// Package migrations embeds the goose SQL migrations that create the
// registry table and the five satellite tables of spec.md §6.2–§6.3.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the goose migrations directory name within FS.
const Dir = "sql"
