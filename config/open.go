package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/script-host/errors"
	"github.com/wippyai/script-host/store"
)

// OpenStore opens the configured backend. The returned func releases it.
func (c Config) OpenStore() (store.Store, func() error, error) {
	noop := func() error { return nil }
	switch c.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), noop, nil
	case "sqlite":
		s, err := store.OpenSQLite(c.StorePath())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "file", "":
		return store.NewFileStore(store.WithPath(c.StorePath())), noop, nil
	default:
		return nil, nil, errors.InvalidInput(errors.PhaseConfig, "unknown store backend "+c.Store.Backend)
	}
}

// BuildLogger builds a zap logger from the log section.
func (l LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if l.Output != "" {
		zc.OutputPaths = []string{l.Output}
		zc.ErrorOutputPaths = []string{l.Output}
	}
	return zc.Build()
}
