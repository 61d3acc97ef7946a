// Package jsonb adapts Go maps to the Postgres JSONB columns used
// throughout the registry and satellite schemas (spec.md §6.2–§6.3), so
// every package that reads or writes a `data`/`properties`/`*_payload`
// column shares one Scan/Value implementation instead of reinventing it.
package jsonb

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Map is a JSON object column value. A nil Map reads back as an empty
// object, never as SQL NULL, matching spec.md's "data empty object" default
// for placeholder rows (§4.2 step 5).
type Map map[string]interface{}

// Value implements driver.Valuer.
func (m Map) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(m))
}

// Scan implements sql.Scanner.
func (m *Map) Scan(src interface{}) error {
	if src == nil {
		*m = Map{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonb.Map: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*m = Map{}
		return nil
	}
	out := Map{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("jsonb.Map: unmarshal: %w", err)
	}
	*m = out
	return nil
}

// QueueDepth reads the conventional "queue_depth" property as an int
// (spec.md §3.2's property for queue-backed kinds). It does not check the
// sign: a negative value is returned with ok=true, and callers reject it.
func (m Map) QueueDepth() (int, bool) {
	v, ok := m["queue_depth"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// Description reads the conventional "description" property.
func (m Map) Description() (string, bool) {
	v, ok := m["description"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
