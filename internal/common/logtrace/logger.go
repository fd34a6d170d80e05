// Package logtrace sets up the zerolog logger and carries the request
// identifier through contexts.
package logtrace

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevelEnv overrides the default info level, e.g. IDGO_LOG_LEVEL=trace.
const LogLevelEnv = "IDGO_LOG_LEVEL"

// InitLogger writes Unix-timestamped JSON lines to stderr at the level named
// by LogLevelEnv.
func InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	SetLevel(os.Getenv(LogLevelEnv))
}

// SetLevel sets the global level. Unknown or empty names select info.
func SetLevel(name string) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
