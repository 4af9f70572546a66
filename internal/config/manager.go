package config

import (
	"context"
	"os"
	"reflect"
	"sync"
	"time"

	logx "dailyverse/pkg/logx"
)

// Manager holds the live configuration. Watch reloads it from disk and
// hands every accepted version to subscribers.
type Manager struct {
	path   string
	getenv func(string) string

	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error

	mu  sync.RWMutex
	cfg *Config

	subMu sync.Mutex
	subs  map[chan *Config]struct{}
}

func NewManager(path string) *Manager {
	return &Manager{
		path:   path,
		getenv: os.Getenv,
		log:    logx.Nop(),
		subs:   make(map[chan *Config]struct{}),
	}
}

func (m *Manager) Path() string { return m.path }

// SetLogger and SetValidator must be called before Watch.
func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a check that a reloaded config must pass before it
// replaces the current one.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// read decodes the file and overlays environment overrides.
func (m *Manager) read() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(m.path, b)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, m.getenv)
	return cfg, nil
}

// Load reads the file and makes it current without validating or publishing.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	m.set(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) set(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// Subscribe returns a channel that receives each accepted config. A slow
// subscriber only ever misses intermediate versions, never the newest.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, max(1, buffer))
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		for {
			select {
			case ch <- cfg:
			default:
				// Full: drop the oldest queued version and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// reload re-reads the file and publishes it if it differs from the current
// config and passes validation. Failures keep the current config.
func (m *Manager) reload(ctx context.Context) {
	cfg, err := m.read()
	if err != nil {
		m.log.Warn("config reload failed", logx.String("path", m.path), logx.Err(err))
		return
	}
	if reflect.DeepEqual(cfg, m.Get()) {
		m.log.Debug("config file touched, content unchanged")
		return
	}
	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			m.log.Warn("config rejected, keeping the running one", logx.String("path", m.path), logx.Err(err))
			return
		}
	}
	m.set(cfg)
	m.publish(cfg)
}
