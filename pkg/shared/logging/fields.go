// Package logging provides a small structured-field builder shared by every
// component that logs through go.uber.org/zap.
package logging

// Fields is an unordered bag of structured logging attributes, built up with
// the chained setters below and handed to a zap.Logger as a single
// zap.Any("fields", ...) or expanded via ToZapFields.
type Fields map[string]interface{}

// NewFields returns an empty Fields set.
func NewFields() Fields {
	return Fields{}
}

// Component records which subsystem emitted the log line.
func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

// Operation records which operation was being performed.
func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

// Resource records the kind and, if known, the name of the resource the
// operation acted on. An empty name omits resource_name.
func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

// Path records the hierarchical path an operation is scoped to.
func (f Fields) Path(path string) Fields {
	f["path"] = path
	return f
}

// Attempt records a retry attempt number, for contention-error logging.
func (f Fields) Attempt(n int) Fields {
	f["attempt"] = n
	return f
}

// Err attaches an error's message under the conventional "error" key.
func (f Fields) Err(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// Custom attaches an arbitrary key/value pair not covered by a dedicated
// setter above.
func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}
