package config

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the application logger. Debug mode logs text with full
// timestamps; otherwise entries are JSON. With Output.LogFile set, entries go
// to a rotating file as well as stderr.
func (c *Config) NewLogger(debug bool) *logrus.Logger {
	logger := logrus.New()

	var out io.Writer = os.Stderr
	if c.Output.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename: c.Output.LogFile,
			MaxSize:  c.Output.MaxLogSize, // megabytes
			MaxAge:   c.Output.MaxLogAge,  // days
		})
	}
	logger.SetOutput(out)

	if debug || c.Output.Verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
