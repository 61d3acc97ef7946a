package registry

import (
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
)

// Entry is a single registry row: spec.md §3.2.
type Entry struct {
	ID         int64     `db:"id"`
	Kind       Kind      `db:"kind"`
	Name       string    `db:"name"`
	Properties jsonb.Map `db:"properties"`
	Data       jsonb.Map `db:"data"`
	Path       string    `db:"path"` // dotted form; see internal/path
}

// ParsedPath parses Path into a path.Path, returning path.Parse's error for
// a malformed value. It never panics.
func (e Entry) ParsedPath() (path.Path, error) {
	return path.Parse(e.Path)
}

// QueueDepth returns the entry's properties.queue_depth, and whether it was
// present and well-formed.
func (e Entry) QueueDepth() (int, bool) {
	return e.Properties.QueueDepth()
}
