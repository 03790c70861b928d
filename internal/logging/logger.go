// Package logging builds the process logger: an hclog InterceptLogger that
// writes to stdout (errors to stderr) with colors resolved by term, plus an
// optional append-only log file registered as a sink.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/config"
	"github.com/backmassage/sdr2hdr/internal/term"
)

const timeFormat = "2006-01-02 15:04:05"

// Logger is the root logger. Components receive it (or a Named child) as an
// hclog.Logger.
type Logger struct {
	hclog.InterceptLogger

	mu   sync.Mutex
	file *os.File
	sink hclog.SinkAdapter
}

// NewLogger initializes colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout, os.Stderr)
}

func newLogger(cfg *config.Config, stdout, stderr io.Writer) (*Logger, error) {
	term.Configure(cfg.ColorMode, stdout)

	level := hclog.Info
	if cfg.Verbose {
		level = hclog.Debug
	}
	color := hclog.ColorOff
	if term.Enabled() {
		color = hclog.ForceColor
	}

	l := &Logger{}
	l.InterceptLogger = hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:       "sdr2hdr",
		Level:      level,
		Output:     hclog.NewLeveledWriter(stdout, map[hclog.Level]io.Writer{hclog.Error: stderr}),
		Color:      color,
		TimeFormat: timeFormat,
	})

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		l.sink = hclog.NewSinkAdapter(&hclog.LoggerOptions{
			Level:      level,
			Output:     f,
			TimeFormat: timeFormat,
		})
		l.RegisterSink(l.sink)
	}
	return l, nil
}

// Close detaches and closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.DeregisterSink(l.sink)
	err := l.file.Close()
	l.file = nil
	return err
}
