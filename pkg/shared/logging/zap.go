package logging

import "go.uber.org/zap"

// ToZapFields converts a Fields set into zap.Field values, sorted is not
// required since zap preserves call order and the set is small and
// call-site local.
func (f Fields) ToZapFields() []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
