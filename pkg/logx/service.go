package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultLogFile = "./logs/dailyverse.log"

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig forwards lines at MinLevel and above to the operator chat,
// at most RatePerSec per second.
type TelegramConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

// Sender delivers operator log lines to a chat. The Telegram adapter implements it.
type Sender interface {
	SendOperatorText(ctx context.Context, chatID int64, text string) error
}

// Service owns the log outputs. Loggers handed out by it pick up a new
// configuration as soon as Apply returns.
type Service struct {
	mu   sync.Mutex
	file *os.File
	op   *operatorSink

	root atomic.Pointer[zerolog.Logger]
}

// New builds the service, applies cfg and returns the root Logger.
// sender may be nil, in which case Telegram output is never enabled.
func New(cfg Config, sender Sender) (*Service, Logger) {
	s := &Service{}
	if sender != nil {
		s.op = newOperatorSink(sender)
	}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetTelegramTarget sets the chat that receives operator lines. 0 mutes the sink.
func (s *Service) SetTelegramTarget(chatID int64) {
	if s.op != nil {
		s.op.setTarget(chatID)
	}
}

// Apply rebuilds the writer set. Safe to call while other goroutines log.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var outs []io.Writer
	if cfg.Console {
		outs = append(outs, consoleWriter(os.Stdout))
	}

	prevFile := s.file
	s.file = nil
	if cfg.File.Enabled {
		if f, err := openLogFile(cfg.File.Path); err != nil {
			fmt.Fprintf(os.Stderr, "logx: %v\n", err)
		} else {
			s.file = f
			outs = append(outs, zerolog.SyncWriter(f))
		}
	}

	if s.op != nil {
		s.op.configure(cfg.Telegram)
		if cfg.Telegram.Enabled {
			s.op.start()
			outs = append(outs, s.op)
			if s.op.target() == 0 {
				fmt.Fprintln(os.Stderr, "logx: telegram logging enabled without a target chat")
			}
		}
	}
	if len(outs) == 0 {
		outs = append(outs, consoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(outs...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	// Close the old file only after the new logger is published.
	if prevFile != nil {
		_ = prevFile.Close()
	}
}

// Close stops the operator sink and closes the log file. Later log calls
// fall back to the console.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	zl := zerolog.New(consoleWriter(os.Stdout)).Level(s.current().GetLevel()).With().Timestamp().Logger()
	s.root.Store(&zl)
	s.mu.Unlock()

	if s.op != nil {
		s.op.stop()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir %q: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log file %q: %w", path, err)
	}
	return f, nil
}
