package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init installe le logger par défaut : texte/debug en local, JSON/info sinon.
func Init(env string) *slog.Logger {
	return InitWithWriter(env, os.Stdout)
}

func InitWithWriter(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler
	if env == "local" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}
