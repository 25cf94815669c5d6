package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

// newLogger собирает логгер процесса. Каждая запись несет атрибут service.
// В терминал пишет читаемо через devslog, в остальные приемники - JSON.
// Стандартный log перенаправляется в тот же обработчик.
func newLogger(w io.Writer, service, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if f, ok := w.(interface{ Fd() uintptr }); ok && isatty.IsTerminal(f.Fd()) {
		handler = devslog.NewHandler(w, &devslog.Options{HandlerOptions: opts})
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})

	log.SetOutput(slog.NewLogLogger(handler, slog.LevelInfo).Writer())
	log.SetFlags(0)

	return slog.New(handler), nil
}
