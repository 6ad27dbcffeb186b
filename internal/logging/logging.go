// Package logging builds the process-wide structured logger and a
// best-effort asynchronous sink for the audit-style events each task
// wants to record without ever blocking its hot path (§6 "Logger: A
// best-effort write-only sink — not on the latency-critical path").
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger at level, writing a human-readable console
// format when pretty is true (development) or newline-delimited JSON
// otherwise (production) — the two registers seen across the retrieval
// pack's zerolog users.
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
