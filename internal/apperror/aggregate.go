package apperror

import "strings"

// LogFields renders an error into a structured map suitable for
// pkg/shared/logging.Fields, for call sites that want the classification
// alongside a log line without formatting the error string themselves.
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	ae, ok := err.(*AppError)
	if !ok {
		return fields
	}
	fields["error_type"] = string(ae.Type)
	fields["status_code"] = ae.StatusCode
	if ae.Details != "" {
		fields["error_details"] = ae.Details
	}
	if ae.Cause != nil {
		fields["underlying_error"] = ae.Cause.Error()
	}
	return fields
}

// Chain concatenates zero or more errors into a single error, skipping nils.
// It returns nil if every argument is nil, the argument itself if exactly
// one is non-nil, and a joined error otherwise.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, e := range nonNil {
			msgs[i] = e.Error()
		}
		return New(ErrorTypeInternal, strings.Join(msgs, " -> "))
	}
}
