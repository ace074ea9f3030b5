package wsserver

import (
	"os"

	"github.com/rs/zerolog"
)

// defaultLogger mirrors the console-in-dev / JSON-in-prod split common
// across the zerolog-based services in this codebase: a TTY gets a
// human-readable writer, anything else gets structured JSON lines.
func defaultLogger() zerolog.Logger {
	if isatty(os.Stderr) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
