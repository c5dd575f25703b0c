package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON slog logger tagged with the component name.
func NewLogger(component string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler).With("component", component)
}
