// Package logging configures the process-wide logrus logger and hands out
// subsystem-tagged entries, matching the subsystem field convention used
// throughout the engine's log call sites ("coordinator", "query", "tick",
// "transport", "harness").
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New configures a logrus.Logger from the given level string (one of
// logrus's level names; invalid or empty defaults to "info") and returns it
// writing to stderr. jsonFormat selects JSONFormatter over the
// full-timestamp TextFormatter used for local/dev runs.
func New(level string, jsonFormat bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Subsystem returns an entry tagged with subsystem, the unit every package
// in this engine logs through rather than the bare *logrus.Logger.
func Subsystem(log *logrus.Logger, subsystem string) *logrus.Entry {
	return log.WithField("subsystem", subsystem)
}
