package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig controls how the service logger is built.
type LoggingConfig struct {
	// Level is the minimum level to emit: trace, debug, info, warn, error,
	// fatal, or panic.
	Level string

	// Format selects json output, or console/pretty for local development.
	Format string

	// Output selects stdout or stderr.
	Output string

	// AddSource annotates entries with the calling file and line.
	AddSource bool

	// TimeFormat overrides the RFC3339 timestamp format.
	TimeFormat string
}

// DefaultLoggingConfig returns production defaults: info-level JSON on stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds a zerolog logger from the configuration. The level is
// also applied globally so loggers derived with With() inherit it.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	var sink io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		sink = os.Stderr
	}
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: timeFormat}
	}

	ctx := zerolog.New(sink).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return ctx.Logger().Level(level)
}

// parseLevel converts a string log level to zerolog.Level. Unknown values
// fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithSearchContext adds the query and source fields to a logger.
func WithSearchContext(logger zerolog.Logger, query, source string) zerolog.Logger {
	return logger.With().
		Str("query", query).
		Str("source", source).
		Logger()
}

// WithPaperContext adds the paper identifier fields to a logger.
func WithPaperContext(logger zerolog.Logger, paperID, doi string) zerolog.Logger {
	return logger.With().
		Str("paper_id", paperID).
		Str("doi", doi).
		Logger()
}

// WithRequestContext adds the request_id field to a logger.
func WithRequestContext(logger zerolog.Logger, requestID string) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Logger()
}
