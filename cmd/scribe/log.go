package scribe

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/scribe/internal/conf"
)

// initLog configures the global logger. Everything goes to stderr since the
// worker child uses stdout for its control channel.
func initLog(c conf.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	if Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
