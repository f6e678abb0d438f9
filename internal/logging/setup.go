package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Debug   bool
	Verbose bool
	Quiet   bool
	Output  io.Writer
}

// Configure sets level and destination. Logs are shown only with Debug or
// Verbose; results go to stdout regardless.
func Configure(logger *logrus.Logger, opts Options) {
	if logger == nil {
		return
	}
	target := opts.Output
	if target == nil {
		target = os.Stderr
	}

	switch {
	case opts.Debug:
		logger.SetLevel(logrus.DebugLevel)
		logger.SetOutput(target)
	case opts.Quiet:
		logger.SetLevel(logrus.WarnLevel)
		logger.SetOutput(io.Discard)
	case opts.Verbose:
		logger.SetLevel(logrus.InfoLevel)
		logger.SetOutput(target)
	default:
		logger.SetLevel(logrus.WarnLevel)
		logger.SetOutput(target)
	}
}
