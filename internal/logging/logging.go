// Package logging builds the structured logger used across vrsindex.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vrsindex/vrsindex/internal/model"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// Logger wraps slog.Logger with vrsindex-specific field helpers so every
// package logs loci, runs and errors under the same keys.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to w. format is "text" or "json".
func New(w io.Writer, level, format string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// WithRun tags the logger with a run id and input path.
func (l *Logger) WithRun(runID, input string) *Logger {
	return &Logger{Logger: l.Logger.With("run_id", runID, "input", input)}
}

// LogSkip logs a record dropped by the error policy.
func (l *Logger) LogSkip(ctx context.Context, line int64, locus model.VariantLocus, err error) {
	l.WarnContext(ctx, "record skipped",
		"line", line,
		"chrom", locus.Chromosome,
		"pos", locus.Position,
		"code", vrserrors.CodeOf(err).Name(),
		"error", err,
	)
}
