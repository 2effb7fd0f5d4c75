package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is the service-wide structured logger.
type Logger struct {
	*logrus.Entry
}

func New() *Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput builds a logger writing to w. Formatter and level follow
// ENVIRONMENT and LOG_LEVEL.
func NewWithOutput(w io.Writer) *Logger {
	base := logrus.New()

	// local runs get a readable console, everything else ships JSON
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     w == os.Stdout,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(w)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base).WithField("service", "care-ats")}
}

// Discard returns a logger that drops everything. Used by tests and CLIs
// running with -quiet.
func Discard() *Logger {
	return NewWithOutput(io.Discard)
}

// Component scopes the logger to a named component.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields)}
}

// RequestID returns the inbound X-Request-ID or a fresh one.
func RequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"req_id":     RequestID(r),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
