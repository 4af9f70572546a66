package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "file-token"
  owner_user_ids: [42]
logging:
  level: info
  console: true
bible:
  api_key: "file-key"
scheduler:
  catch_up: 10m
  workers: 2
storage:
  driver: sqlite
  path: ./data/schedules.db
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeYAMLAndJSON(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if cfg.Telegram.Token != "file-token" || cfg.Storage.Driver != "sqlite" || cfg.Scheduler.Workers != 2 {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}

	j := `{"telegram":{"token":"t"},"bible":{"api_key":"k"}}`
	cfg, err = Decode("config.json", []byte(j))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if cfg.Bible.APIKey != "k" {
		t.Fatalf("api key = %q", cfg.Bible.APIKey)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown json field", "c.json", `{"telegram":{"token":"t"},"plugins":{}}`},
		{"unknown yaml field", "c.yml", "scheduler:\n  history_size: 3\n"},
		{"trailing data", "c.json", `{"telegram":{}} {}`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tc.path, []byte(tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cfg.Telegram.Token = "file"
	cfg.Bible.APIKey = "file"
	env := map[string]string{
		EnvTelegramToken: "env-token",
		EnvBibleAPIKey:   "  ",
		EnvBibleEndpoint: "http://localhost:9999",
	}
	ApplyEnv(cfg, func(k string) string { return env[k] })
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Bible.APIKey != "file" {
		t.Fatalf("blank env value must not override, got %q", cfg.Bible.APIKey)
	}
	if cfg.Bible.Endpoint != "http://localhost:9999" {
		t.Fatalf("endpoint = %q", cfg.Bible.Endpoint)
	}
}

func TestSchedulerParseDefaults(t *testing.T) {
	t.Parallel()
	s, err := SchedulerConfig{}.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if s.Tick != DefaultTick || s.Workers != DefaultWorkers || s.CatchUp != 0 ||
		s.RequestTimeout != DefaultRequestTimeout || s.BackoffBase != DefaultBackoffBase || s.BackoffMax != DefaultBackoffMax {
		t.Fatalf("unexpected defaults: %+v", s)
	}

	s, err = SchedulerConfig{CatchUp: "30m", BackoffBase: "2h", BackoffMax: "1h"}.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if s.CatchUp != 30*time.Minute || s.BackoffMax != 2*time.Hour {
		t.Fatalf("unexpected parse: %+v", s)
	}

	if _, err := (SchedulerConfig{CatchUp: "soon"}).Parse(); err == nil {
		t.Fatal("expected invalid duration error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	good := func() *Config {
		c := &Config{}
		c.Telegram.Token = "t"
		c.Bible.APIKey = "k"
		return c
	}
	if err := Validate(good()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"missing api key", func(c *Config) { c.Bible.APIKey = "" }, "bible.api_key"},
		{"bad tick", func(c *Config) { c.Scheduler.Tick = "every minute" }, "scheduler.tick"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"bad group log", func(c *Config) { c.Telegram.GroupLog = "@ops" }, "telegram.group_log"},
		{"negative duration", func(c *Config) { c.Bible.Timeout = "-1s" }, "bible.timeout"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := good()
			tc.mutate(c)
			err := Validate(c)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestManagerLoadAppliesEnv(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewManager(path)
	m.getenv = func(k string) string {
		if k == EnvBibleAPIKey {
			return "env-key"
		}
		return ""
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bible.APIKey != "env-key" || cfg.Telegram.Token != "file-token" {
		t.Fatalf("unexpected config: %+v", cfg.Bible)
	}
	if m.Get() != cfg {
		t.Fatal("Load must commit")
	}
}

func TestManagerReloadValidatesAndPublishes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewManager(path)
	m.getenv = func(string) string { return "" }
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return Validate(cfg) })
	ch := m.Subscribe(1)

	// Unchanged content publishes nothing.
	m.reload(context.Background())
	select {
	case <-ch:
		t.Fatal("unchanged config must not publish")
	default:
	}

	// An invalid config is rejected and the old one kept.
	writeFile(t, dir, "config.yaml", strings.Replace(sampleYAML, "driver: sqlite", "driver: redis", 1))
	m.reload(context.Background())
	if m.Get().Storage.Driver != "sqlite" {
		t.Fatal("rejected config was committed")
	}

	writeFile(t, dir, "config.yaml", strings.Replace(sampleYAML, "workers: 2", "workers: 8", 1))
	m.reload(context.Background())
	select {
	case cfg := <-ch:
		if cfg.Scheduler.Workers != 8 {
			t.Fatalf("workers = %d", cfg.Scheduler.Workers)
		}
	default:
		t.Fatal("expected a published config")
	}
	m.Unsubscribe(ch)
}

func TestLoadDotEnvMissingFilesIsFine(t *testing.T) {
	t.Parallel()
	loaded, err := LoadDotEnv(t.TempDir())
	if err != nil || len(loaded) != 0 {
		t.Fatalf("loaded=%v err=%v", loaded, err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{}
	oldCfg.Telegram.Token = "a"
	newCfg := &Config{}
	newCfg.Telegram.Token = "b"
	newCfg.Scheduler.Workers = 3
	newCfg.Storage.Path = "x.db"

	changed, _, restart := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "scheduler,storage,telegram" {
		t.Fatalf("changed = %v", changed)
	}
	if strings.Join(restart, ",") != "storage,telegram" {
		t.Fatalf("restart = %v", restart)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"90s", 90 * time.Second, false},
		{"2d", 48 * time.Hour, false},
		{" 15m ", 15 * time.Minute, false},
		{"-1m", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("scheduler.backoff_max", tc.raw)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err=%v wantErr=%v", tc.raw, err, tc.wantErr)
		}
		if err != nil {
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != "scheduler.backoff_max" {
				t.Fatalf("%q: expected FieldError, got %T", tc.raw, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.raw, got, tc.want)
		}
	}
}

func TestWatchPublishesEditedFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)

	m := NewManager(path)
	m.getenv = func(string) string { return "" }
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "config.yaml", strings.Replace(sampleYAML, "workers: 2", "workers: 5", 1))

	select {
	case cfg := <-ch:
		if cfg.Scheduler.Workers != 5 {
			t.Fatalf("workers = %d", cfg.Scheduler.Workers)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after edit")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Watch returned %v", err)
	}
}
