package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a logr.Logger backed by zap via zapr.NewLogger, the
// same wiring the teacher uses to hand a logr.Logger to controllers while
// keeping zap as the sink. level parses as a zapcore.Level name ("debug",
// "info", "warn", "error"); anything unrecognized falls back to info.
func NewLogger(level string) (logr.Logger, error) {
	zapLevel := zapcore.InfoLevel
	_ = zapLevel.UnmarshalText([]byte(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapLogger, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zapLogger), nil
}

// Info logs msg at info level with fields flattened to logr key/value pairs.
func Info(log logr.Logger, msg string, fields Fields) {
	log.Info(msg, fields.keysAndValues()...)
}

// Error logs msg at error level, attaching err and fields.
func Error(log logr.Logger, err error, msg string, fields Fields) {
	log.Error(err, msg, fields.keysAndValues()...)
}

func (f Fields) keysAndValues() []interface{} {
	out := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
