// Package logging configures the process-wide logrus logger.
package logging

import (
	"NetSentry/internal/config"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup applies the configured level and format to the standard logger.
func Setup(cfg config.LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: '%s'", cfg.Format)
	}
	return nil
}
