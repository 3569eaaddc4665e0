package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global zerolog logger.
// format: console|json; level: debug|info|warn|error.
// If filePath != "", logs go to a rotating file instead of stdout.
func Setup(level, format, filePath string) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(filePath) != "" {
		lj := &lumberjack.Logger{Filename: filePath, MaxSize: 50, MaxBackups: 5, MaxAge: 14, Compress: true}
		w, closer = lj, lj
	}
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: filePath != ""}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(ParseLevel(level))
	return closer
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
