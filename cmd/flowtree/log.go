package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func newLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

func (rcc *rootCmdConfig) Logger() (*slog.Logger, error) {
	return newLogger(os.Stderr, rcc.verbose, rcc.logFormat)
}
