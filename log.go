package gokusto

import (
	"io"

	"github.com/sirupsen/logrus"
)

// logger is the driver wide logger. Quiet by default; raise the level with
// SetLogLevel for troubleshooting.
var logger = createDefaultLogger()

func createDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	l.SetFormatter(&maskingFormatter{inner: &logrus.TextFormatter{DisableQuote: true}})
	return l
}

// maskingFormatter runs secret masking over every log line so credentials
// from connection strings and tokens never reach the output.
type maskingFormatter struct {
	inner logrus.Formatter
}

func (f *maskingFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Message = maskSecrets(entry.Message)
	return f.inner.Format(entry)
}

// SetLogLevel sets the log level of the driver logger.
// Levels are: trace, debug, info, warn, error, fatal, panic.
func SetLogLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lv)
	return nil
}

// SetLogOutput redirects the driver log output.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}
