// Package logging builds the zerolog loggers used across the archive.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w at the given level. An
// unparseable level falls back to error; verbose lowers it to debug.
func New(w io.Writer, level string, verbose bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.ErrorLevel
	}
	if verbose && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: !isTerminal(w)}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Module returns a child logger tagged with the component name.
func Module(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("module", name).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
