package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger at the given level. Services receive it by
// injection; nothing reads the process-wide default.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
