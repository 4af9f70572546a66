package app

import (
	"strings"
	"time"

	"dailyverse/internal/config"
	"dailyverse/internal/content"
	"dailyverse/internal/health"
	"dailyverse/internal/scheduler"
	"dailyverse/internal/storage"
	telegram "dailyverse/internal/transport/telegram/adapter"
	logx "dailyverse/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget is the chat that receives operator log lines: telegram.group_log,
// else the first owner.
func logTarget(cfg *config.Config) int64 {
	if id, err := parseChatID(cfg.Telegram.GroupLog); err == nil && id != 0 {
		return id
	}
	if len(cfg.Telegram.OwnerUserIDs) > 0 {
		return cfg.Telegram.OwnerUserIDs[0]
	}
	return 0
}

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	rps := cfg.Delivery.RatePerSec
	if rps <= 0 {
		rps = config.DefaultDeliveryRate
	}
	return telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    poll,
		SendRatePerSec: rps,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = config.DefaultStoragePath
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: cfg.Storage.Driver, Path: path, BusyTimeout: busy}, nil
}

func mapContentConfig(cfg *config.Config) (content.ClientConfig, error) {
	b, err := cfg.Bible.Parse()
	if err != nil {
		return content.ClientConfig{}, err
	}
	return content.ClientConfig{
		Endpoint:   b.Endpoint,
		APIKey:     b.APIKey,
		Timeout:    b.Timeout,
		RatePerSec: b.RatePerSec,
		CatalogTTL: b.CatalogTTL,
	}, nil
}

func mapSchedulerOptions(cfg *config.Config) (scheduler.Options, error) {
	s, err := cfg.Scheduler.Parse()
	if err != nil {
		return scheduler.Options{}, err
	}
	b, err := cfg.Bible.Parse()
	if err != nil {
		return scheduler.Options{}, err
	}
	return scheduler.Options{
		Tick:           s.Tick,
		CatchUp:        s.CatchUp,
		Workers:        s.Workers,
		RequestTimeout: s.RequestTimeout,
		BackoffBase:    s.BackoffBase,
		BackoffMax:     s.BackoffMax,
		DefaultVersion: b.DefaultVersion,
	}, nil
}

func mapHealthConfig(cfg *config.Config) health.Config {
	addr := strings.TrimSpace(cfg.Health.Addr)
	if addr == "" {
		addr = config.DefaultHealthAddr
	}
	return health.Config{
		Enabled:      cfg.Health.Enabled,
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
