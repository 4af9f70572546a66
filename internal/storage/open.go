package storage

import (
	"errors"
	"strings"

	"dailyverse/internal/schedule"
	logx "dailyverse/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (schedule.Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required")
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
