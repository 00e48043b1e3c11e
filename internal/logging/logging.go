// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
)

// Setup sets the level, formatter and output of the standard logger.
// format is "text" or "json".
func Setup(level, format string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return sperrors.Wrap(err, sperrors.CodeConfigValidateInvalidValue, "parse log level",
			sperrors.Field("level", level))
	}

	var formatter logrus.Formatter
	switch format {
	case "json":
		formatter = &logrus.JSONFormatter{}
	case "text", "":
		formatter = &logrus.TextFormatter{DisableTimestamp: true}
	default:
		return sperrors.Errorf(sperrors.CodeConfigValidateInvalidValue, "unknown log format %q", format)
	}

	logger := logrus.StandardLogger()
	logger.SetLevel(lvl)
	logger.SetFormatter(formatter)
	if w != nil {
		logger.SetOutput(w)
	}
	return nil
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
