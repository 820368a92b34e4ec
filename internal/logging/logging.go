package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"chess-arena/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
	fileSink *sizeLimitedWriter
)

// Init configures the global zerolog logger. A file sink that cannot be
// opened is reported and skipped so the process still logs to stdout.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var sink io.Writer = os.Stdout
	var fileErr error
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := newSizeLimitedWriter(path, cfg.MaxMB)
		if err != nil {
			fileErr = err
		} else {
			setFileSink(f)
			sink = io.MultiWriter(os.Stdout, f)
		}
	}
	setWriter(sink)

	var output io.Writer = sink
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: sink}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if n := cfg.SampleEvery; n > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(n)})
	}
	log.Logger = logger

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", cfg.File).Msg("log file unavailable; logging to stdout only")
	}
}

// Writer returns the raw sink the global logger writes to, for libraries
// that need an io.Writer (slog handlers, http request logs).
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

// Close flushes and closes the file sink, if any.
func Close() error {
	writerMu.Lock()
	f := fileSink
	fileSink = nil
	writer = os.Stdout
	writerMu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func setWriter(w io.Writer) {
	writerMu.Lock()
	writer = w
	writerMu.Unlock()
}

func setFileSink(f *sizeLimitedWriter) {
	writerMu.Lock()
	prev := fileSink
	fileSink = f
	writerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}
