// Package logging is vesyncd's structured logging layer over log/slog.
//
// Every entry carries service and version fields. Format (json/text),
// level, and destination come from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Attributes keyed password, token, and similar are redacted before
// output: the VeSync account password and cloud token must never appear
// in logs even if a call site passes them by mistake.
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("starting service", "port", 8130)
package logging
