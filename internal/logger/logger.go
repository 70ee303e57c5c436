package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. JSON output is used when jsonFormat is set,
// coloured text otherwise.
func New(level string, jsonFormat bool) *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stdout

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if jsonFormat {
		logger.SetFormatter(&logrus.JSONFormatter{
			PrettyPrint: false,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
			PadLevelText:  true,
		})
	}

	return logger
}
