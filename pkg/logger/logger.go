// Package logger provides the structured, logrus-backed logger shared by every
// component of the session server.
package logger

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// LogField is a single structured key/value pair attached to a log entry.
type LogField struct {
	Key   string
	Value string
}

// Logger is the logging contract used throughout the codebase.
type Logger interface {
	Info(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
	Debug(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	WithFields(fields ...LogField) Logger
	WithCorrelationID(id string) Logger
	GrpcRequestsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error)
	HTTPMiddleware(next http.Handler) http.Handler
}

// Config controls logger construction.
type Config struct {
	Level   Level
	Format  string // "json" (default) or "text"
	Service string
	Output  io.Writer // defaults to os.Stdout
}

type logger struct {
	logrus  *logrus.Logger
	fields  []LogField
	service string
}

// NewLogger builds a Logger from the given configuration.
func NewLogger(config Config) Logger {
	l := logrus.New()

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if config.Output != nil {
		l.SetOutput(config.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	l.SetLevel(config.Level.logrusLevel())

	var base []LogField
	if config.Service != "" {
		base = append(base, StringField("service", config.Service))
	}

	return &logger{
		logrus:  l,
		fields:  base,
		service: config.Service,
	}
}

// NewNopLogger returns a logger that discards everything. Handy in tests.
func NewNopLogger() Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// WithFields returns a child logger; the receiver is left untouched.
func (l *logger) WithFields(fields ...LogField) Logger {
	merged := make([]LogField, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)

	return &logger{
		logrus:  l.logrus,
		fields:  merged,
		service: l.service,
	}
}

func (l *logger) WithCorrelationID(id string) Logger {
	return l.WithFields(CorrelationIDField(id))
}

func (l *logger) Info(msg string, fields ...LogField) {
	l.entry(fields).Info(msg)
}

func (l *logger) Error(msg string, fields ...LogField) {
	l.entry(fields).Error(msg)
}

func (l *logger) Debug(msg string, fields ...LogField) {
	l.entry(fields).Debug(msg)
}

func (l *logger) Warn(msg string, fields ...LogField) {
	l.entry(fields).Warn(msg)
}

// entry flattens the bound and call-site fields into a logrus entry.
// Call-site fields win on key collisions.
func (l *logger) entry(fields []LogField) *logrus.Entry {
	data := make(logrus.Fields, len(l.fields)+len(fields))
	for _, f := range l.fields {
		data[f.Key] = f.Value
	}
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return l.logrus.WithFields(data)
}
