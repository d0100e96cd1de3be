// Package logger configures the process-wide zerolog logger, modeled on
// email-service/internal/logger: JSON output when NODE_ENV=production,
// console output otherwise, with LOG_FORMAT overriding that choice and the
// level taken from the caller.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

func Init(level string) {
	InitWithWriter(level, os.Stdout)
}

func InitWithWriter(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(strings.ToLower(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		if strings.TrimSpace(os.Getenv("NODE_ENV")) == "production" {
			format = "json"
		} else {
			format = "console"
		}
	}

	var base zerolog.Logger
	if format == "json" {
		base = zerolog.New(w)
	} else {
		cw := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
		if strings.TrimSpace(os.Getenv("LOG_COLOR")) == "0" {
			cw.NoColor = true
		}
		base = zerolog.New(cw)
	}

	l := base.With().Timestamp().Logger().Level(lvl)
	if strings.TrimSpace(os.Getenv("LOG_CALLER")) == "1" {
		l = l.With().Caller().Logger()
	}

	Logger = l
	zlog.Logger = Logger
}

// Named returns a child logger tagged with the given process name, used by
// each of the three entrypoints to distinguish their lines.
func Named(process string) zerolog.Logger {
	return Logger.With().Str("process", process).Logger()
}
