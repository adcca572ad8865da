package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init configures the shared logger. Safe to call more than once; only the
// first call takes effect.
func Init(level string) {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stdout)
		log.SetFormatter(&logrus.JSONFormatter{})

		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			parsed = logrus.InfoLevel
		}
		log.SetLevel(parsed)
	})
}

// GetLogger returns the shared logger, initializing it with defaults if
// Init was never called.
func GetLogger() *logrus.Logger {
	if log == nil {
		Init("info")
	}
	return log
}
