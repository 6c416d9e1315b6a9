package logger

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	Level  string
	Format string
}

// PrepareLogger configures the global logrus logger from config.
func PrepareLogger(config Config) error {
	level, err := log.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", config.Level, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch strings.ToLower(config.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}
	return nil
}
