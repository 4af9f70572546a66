package config

import (
	"time"
)

const (
	DefaultBibleEndpoint  = "https://api.scripture.api.bible"
	DefaultBibleVersion   = "de4e12af7f28f599-02" // King James (Authorised) Version
	DefaultBibleTimeout   = 15 * time.Second
	DefaultBibleRate      = 5.0
	DefaultCatalogTTL     = 6 * time.Hour
	DefaultTick           = "* * * * *"
	DefaultWorkers        = 4
	DefaultRequestTimeout = 20 * time.Second
	DefaultBackoffBase    = 15 * time.Minute
	DefaultBackoffMax     = 24 * time.Hour
	DefaultStoragePath    = "./data/schedules.json"
	DefaultHealthAddr     = ":8080"
	DefaultDeliveryRate   = 25.0
	DefaultPollTimeout    = 10 * time.Second
)

// Scheduler is the parsed form of SchedulerConfig with defaults applied.
type Scheduler struct {
	Tick           string
	CatchUp        time.Duration // 0 means one tick
	Workers        int
	RequestTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

func (c SchedulerConfig) Parse() (Scheduler, error) {
	out := Scheduler{Tick: c.Tick, Workers: c.Workers}
	if out.Tick == "" {
		out.Tick = DefaultTick
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	var err error
	if out.CatchUp, err = ParseDurationField("scheduler.catch_up", c.CatchUp); err != nil {
		return Scheduler{}, err
	}
	if out.RequestTimeout, err = ParseDurationOrDefault("scheduler.request_timeout", c.RequestTimeout, DefaultRequestTimeout); err != nil {
		return Scheduler{}, err
	}
	if out.BackoffBase, err = ParseDurationOrDefault("scheduler.backoff_base", c.BackoffBase, DefaultBackoffBase); err != nil {
		return Scheduler{}, err
	}
	if out.BackoffMax, err = ParseDurationOrDefault("scheduler.backoff_max", c.BackoffMax, DefaultBackoffMax); err != nil {
		return Scheduler{}, err
	}
	if out.BackoffMax < out.BackoffBase {
		out.BackoffMax = out.BackoffBase
	}
	return out, nil
}

// Bible is the parsed form of BibleConfig with defaults applied.
type Bible struct {
	Endpoint       string
	APIKey         string
	DefaultVersion string
	Timeout        time.Duration
	RatePerSec     float64
	CatalogTTL     time.Duration
}

func (c BibleConfig) Parse() (Bible, error) {
	out := Bible{
		Endpoint:       c.Endpoint,
		APIKey:         c.APIKey,
		DefaultVersion: c.DefaultVersion,
		RatePerSec:     c.RatePerSec,
	}
	if out.Endpoint == "" {
		out.Endpoint = DefaultBibleEndpoint
	}
	if out.DefaultVersion == "" {
		out.DefaultVersion = DefaultBibleVersion
	}
	if out.RatePerSec <= 0 {
		out.RatePerSec = DefaultBibleRate
	}
	var err error
	if out.Timeout, err = ParseDurationOrDefault("bible.timeout", c.Timeout, DefaultBibleTimeout); err != nil {
		return Bible{}, err
	}
	if out.CatalogTTL, err = ParseDurationOrDefault("bible.catalog_ttl", c.CatalogTTL, DefaultCatalogTTL); err != nil {
		return Bible{}, err
	}
	return out, nil
}
