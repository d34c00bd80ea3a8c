// Package logging builds the zap logger used across the runtime.
package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/nucleus/internal/config"
)

// New builds a logger from cfg: a development console logger or a
// production JSON logger, both at the configured level.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := cfg.ParsedLevel()
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
