// Package logging constructs the engine's shared structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger at the given level, writing to stdout with
// text formatting readable in local/dev.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// WithBot returns a logger entry scoped to a bot, the convention every
// component below threads through instead of ad hoc log lines.
func WithBot(logger *logrus.Logger, botID string) *logrus.Entry {
	return logger.WithField("bot_id", botID)
}
