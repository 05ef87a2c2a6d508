package helper

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogging opens path (or falls back to stderr when path is empty) and
// wires Logger, mirroring the teacher's main.go which opens LOGPATH and
// assigns helper.Logger before anything else runs.
func SetupLogging(path string) (io.Closer, error) {
	var w io.Writer = os.Stderr
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		w = f
	}
	Logger = logrus.New()
	Logger.SetOutput(w)
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if f != nil {
		return f, nil
	}
	return io.NopCloser(nil), nil
}

// Debugln logs only when CONFIG.LogLevel allows it, matching the teacher's
// helper.Debugln gate used all over meta/storage/api.
func Debugln(v ...interface{}) {
	if CONFIG.LogLevel >= 5 && Logger != nil {
		Logger.Println(v...)
	}
}

// ErrorIf logs err (with msg context) when err is non-nil, leaving the
// call site free to keep propagating the error upward.
func ErrorIf(err error, msg string, v ...interface{}) {
	if err == nil || Logger == nil {
		return
	}
	args := append([]interface{}{msg, err}, v...)
	Logger.Println(args...)
}

// Logln always logs, regardless of log level — used for operational
// messages (server start/stop, GC sweep summaries).
func Logln(v ...interface{}) {
	if Logger != nil {
		Logger.Println(v...)
	}
}
