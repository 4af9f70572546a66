package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override secrets and endpoints from the file.
const (
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvBibleAPIKey   = "API_BIBLE_KEY"
	EnvBibleEndpoint = "API_BIBLE_ENDPOINT"
)

// LoadDotEnv loads .env.local and .env from dir into the process environment.
// Variables already set in the environment win; .env.local wins over .env.
// Missing files are not an error. Returns the files that were loaded.
func LoadDotEnv(dir string) ([]string, error) {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvTelegramToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvBibleAPIKey)); v != "" {
		cfg.Bible.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvBibleEndpoint)); v != "" {
		cfg.Bible.Endpoint = v
	}
}
