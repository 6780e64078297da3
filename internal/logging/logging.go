// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging wraps zerolog with the one runtime-modifiable knob the
// control plane needs: the minimum log level, changed at runtime through
// the admin config endpoint.
package logging

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config controls the initial logger setup.
type Config struct {
	Level  string
	Pretty bool
}

// DefaultConfig returns an info-level, JSON-output configuration.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// levelHook discards events below the threshold at emit time. base is kept
// at TraceLevel so zerolog's own level gate never filters first; this hook
// is the only place the current level is consulted, which is what lets
// SetLevel affect loggers that were handed out before the call.
type levelHook struct {
	level *atomic.Int32
}

func (h levelHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.Level(h.level.Load()) {
		e.Discard()
	}
}

// Handle owns the process-wide log level and hands out zerolog.Logger
// values bound to it. Changing the level through SetLevel affects every
// logger obtained from this handle, including ones already in use: the
// level is consulted by a Hook at the moment each event is emitted, not
// baked into the Logger value at construction time.
type Handle struct {
	level atomic.Int32
	base  zerolog.Logger
}

// New constructs a Handle and its root logger.
func New(cfg Config) *Handle {
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	h := &Handle{}
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	h.level.Store(int32(lvl))
	h.base = zerolog.New(out).Level(zerolog.TraceLevel).With().Timestamp().Logger().Hook(levelHook{level: &h.level})

	return h
}

// Logger returns a logger whose emission respects whatever level is
// current at the time each event is logged, including levels set after
// this call returns.
func (h *Handle) Logger() zerolog.Logger {
	return h.base
}

// SetLevel parses and applies a new minimum log level. Returns
// WrongLogLevel (via the caller) when directive does not parse.
func (h *Handle) SetLevel(directive string) error {
	lvl, err := zerolog.ParseLevel(directive)
	if err != nil {
		return err
	}
	h.level.Store(int32(lvl))
	return nil
}

// Level returns the current minimum level as its string directive.
func (h *Handle) Level() string {
	return zerolog.Level(h.level.Load()).String()
}
