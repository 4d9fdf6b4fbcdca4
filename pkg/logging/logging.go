// Package logging constructs the process-wide structured logger.
package logging

import "github.com/sirupsen/logrus"

// New builds a logrus.Logger at the given level, falling back to info on
// an unparseable level.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
