// Package logging builds the structured logger. The terminal belongs to the
// console, so log output only ever goes to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/samsaffron/aleph/internal/config"
)

// New returns a JSON file logger for cfg, or a no-op logger when cfg.File is empty.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.File == "" {
		return zap.NewNop(), nil
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, &config.ConfigError{Msg: fmt.Sprintf("invalid log.level %q", cfg.Level), Err: err}
		}
		level = parsed
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{cfg.File}
	zc.ErrorOutputPaths = []string{cfg.File}
	zc.DisableStacktrace = true

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.Int("pid", os.Getpid())), nil
}
