package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"card-gacha/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. Request logs written through
// Writer share the same destination.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var base io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB)
		if err == nil {
			base = io.MultiWriter(os.Stdout, fw)
		} else {
			log.Warn().Err(err).Str("path", cfg.File).Msg("log file unavailable; logging to stdout only")
		}
	}
	setOutput(base)

	var sink io.Writer = base
	if cfg.Pretty {
		sink = zerolog.ConsoleWriter{Out: base}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(sink).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the raw destination used by the application logger.
func Writer() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output
}

func setOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}
