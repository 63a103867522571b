package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds the console logger used by the CLI.
func New(out io.Writer, level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
