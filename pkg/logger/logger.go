// Package logger holds the process-wide zap logger. Packages take a child
// logger with WithModule when they are constructed.
package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "swdash"

var (
	current atomic.Pointer[zap.Logger]
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	current.Store(zap.NewNop())
}

// Init builds the global logger. format "console" selects the coloured
// development encoder, anything else JSON. An unknown level means info.
func Init(lvl, format string) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName}

	SetLevel(lvl)
	cfg.Level = level

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	current.Store(built)
	return nil
}

// SetLevel changes the level of a logger built by Init without rebuilding it.
func SetLevel(lvl string) {
	parsed := zapcore.InfoLevel
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(lvl))); err != nil {
		parsed = zapcore.InfoLevel
	}
	level.SetLevel(parsed)
}

// SetLogger installs l, or a no-op logger when l is nil. Tests use it with
// zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

func Logger() *zap.Logger {
	return current.Load()
}

func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger tagged with module.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
