package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger. Every entry carries service and version
// fields, and attributes with secret-looking keys are redacted before
// they reach the handler. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// redactedKeys are attribute keys whose values must never be emitted.
// The VeSync account password and the cloud token travel through config
// and client code; a careless log call must not leak them.
var redactedKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"accounttoken":  true,
	"secret":        true,
	"authorization": true,
}

// New builds a logger from the logging section of config.yaml: JSON or
// text format, level filtering, stdout or stderr.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}

	handler := newHandler(output, cfg).WithAttrs([]slog.Attr{
		slog.String("service", "vesyncd"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// newHandler builds the slog handler for output, applying level
// filtering and secret redaction.
func newHandler(output io.Writer, cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// redactSecrets replaces the value of any secret-keyed attribute.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// parseLevel maps a config level string to slog, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying extra default attributes.
//
//	mqttLog := log.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before config.yaml is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
