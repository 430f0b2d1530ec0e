package config

import (
	"strings"

	"github.com/oarkflow/log"
)

// Logger returns a copy of the default logger at the configured level.
func (cfg *Config) Logger() *log.Logger {
	logger := log.DefaultLogger
	if lvl := strings.TrimSpace(cfg.LogLevel); lvl != "" {
		logger.Level = log.ParseLevel(lvl)
	}
	return &logger
}
