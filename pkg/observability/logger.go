package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LoggerConfig configures the process logger
type LoggerConfig struct {
	Level  string    // logrus level name, e.g. "info"
	Format string    // "text" or "json"
	Output io.Writer // defaults to os.Stderr
}

// NewLogger creates a logrus logger from cfg
func NewLogger(cfg LoggerConfig) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q: expected %s or %s", cfg.Format, FormatText, FormatJSON)
	}

	return log, nil
}

// contextKey is the type for context keys
type contextKey string

const (
	// RunIDKey is the context key for the compilation run ID
	RunIDKey contextKey = "run_id"
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, log *logrus.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, log)
}

// GetLogger retrieves the logger from context, or the logrus standard logger
func GetLogger(ctx context.Context) *logrus.Logger {
	if log, ok := ctx.Value(LoggerKey).(*logrus.Logger); ok {
		return log
	}
	return logrus.StandardLogger()
}

// FromContext returns an entry carrying the run ID and trace context
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(GetLogger(ctx))

	if runID := GetRunID(ctx); runID != "" {
		entry = entry.WithField("run_id", runID)
	}

	return entry.WithFields(TraceFields(ctx))
}
