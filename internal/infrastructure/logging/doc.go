// Package logging provides structured logging for lightify2mqtt.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filter.
//
// Configuration:
//
//	logging:
//	  level: "warn"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr, syslog
//
// When output is syslog the local syslog daemon receives the records with
// the daemon facility. If it cannot be reached the logger falls back to
// stderr.
//
// Never log cloud credentials or the session token.
package logging
