// Package logging builds the zerolog loggers used across tinyblock.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Level maps a level name (case-insensitive) to a zerolog level. Unknown
// names fall back to info.
func Level(name string) zerolog.Level {
	switch strings.ToUpper(name) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether name is a level Level understands.
func ValidLevel(name string) bool {
	switch strings.ToUpper(name) {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "PANIC":
		return true
	}
	return false
}

// New returns a logger tagged with service that writes to w at level.
// With pretty set it writes human-readable lines instead of JSON.
func New(service, level string, w io.Writer, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	out := w
	if pretty {
		out = consoleWriter(w, service)
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Logger().
		Level(Level(level))
}

func consoleWriter(w io.Writer, service string) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}

	output := zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       noColor,
		TimeFormat:    time.RFC3339,
		FieldsExclude: []string{"service"},
	}

	output.FormatTimestamp = func(i interface{}) string {
		parsed, err := time.Parse(time.RFC3339, fmt.Sprint(i))
		if err != nil {
			return fmt.Sprint(i)
		}
		return parsed.Format("15:04:05")
	}
	output.FormatLevel = func(i interface{}) string {
		return fmt.Sprintf("| %-6s|", strings.ToUpper(fmt.Sprint(i)))
	}
	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("| %-9s| %s", service, i)
	}
	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s:", i)
	}

	return output
}
