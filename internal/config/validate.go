package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"dailyverse/internal/scheduler"
)

// Validate checks everything that can be checked without network access and
// reports every problem at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs *multierror.Error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = multierror.Append(errs, fmt.Errorf("telegram.token is required (or set %s)", EnvTelegramToken))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = multierror.Append(errs, err)
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("telegram.group_log: invalid chat id %q", g))
		}
	}
	if strings.TrimSpace(cfg.Bible.APIKey) == "" {
		errs = multierror.Append(errs, fmt.Errorf("bible.api_key is required (or set %s)", EnvBibleAPIKey))
	}
	if _, err := cfg.Bible.Parse(); err != nil {
		errs = multierror.Append(errs, err)
	}

	s, err := cfg.Scheduler.Parse()
	if err != nil {
		errs = multierror.Append(errs, err)
	} else if _, _, err := scheduler.ParseTick(s.Tick); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("scheduler.tick: %w", err))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3":
	default:
		errs = multierror.Append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.Delivery.RatePerSec < 0 {
		errs = multierror.Append(errs, errors.New("delivery.rate_per_sec must be >= 0"))
	}
	return errs.ErrorOrNil()
}
