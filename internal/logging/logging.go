// Package logging builds the monitor's logrus logger from configuration.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/waypoint-monitor/internal/config"
)

// New returns a logger writing to out. An unparseable level falls back to
// info with a warning.
func New(cfg config.LoggingConfig, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.ToLower(cfg.Format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("invalid log level %q, defaulting to info", cfg.Level)
		return log
	}
	log.SetLevel(level)
	return log
}
