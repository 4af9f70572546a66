// Package bot is the Telegram front end: slash commands and the inline setup
// wizard. It talks to the scheduler only through its registration methods.
package bot

import (
	"context"
	"time"

	"dailyverse/internal/content"
	"dailyverse/internal/delivery"
	rtsup "dailyverse/internal/runtime/supervisor"
	"dailyverse/internal/schedule"
	"dailyverse/internal/scheduler"
	"dailyverse/internal/transport/telegram/router"
	logx "dailyverse/pkg/logx"
	"dailyverse/pkg/tgui"
)

// Registrar is the subset of scheduler.Service the front end needs.
type Registrar interface {
	Register(ctx context.Context, recipientID, version, timeOfDay, timezone string) (schedule.Record, error)
	ListAvailableVersions(ctx context.Context) ([]content.Version, error)
	Unregister(ctx context.Context, recipientID string) (bool, error)
	Lookup(ctx context.Context, recipientID string) (schedule.Record, bool, error)
	NextDelivery(rec schedule.Record) (time.Time, error)
	Quote(ctx context.Context, recipientID string) (delivery.Message, error)
	Status(ctx context.Context) scheduler.Status
}

type Option func(*Bot)

// WithTasks supplies supervisor snapshots for /stats.
func WithTasks(fn func() []rtsup.TaskStats) Option {
	return func(b *Bot) { b.tasks = fn }
}

// WithWizardTTL bounds how long an unfinished /setup stays valid.
func WithWizardTTL(d time.Duration) Option {
	return func(b *Bot) { b.wizards = tgui.NewSessions[wizard](d, 0) }
}

type Bot struct {
	reg       Registrar
	log       logx.Logger
	tasks     func() []rtsup.TaskStats
	wizards   *tgui.Sessions[wizard]
	startedAt time.Time
}

func New(reg Registrar, log logx.Logger, opts ...Option) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		reg:       reg,
		log:       log,
		wizards:   tgui.NewSessions[wizard](15*time.Minute, 0),
		startedAt: time.Now(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Commands returns the slash commands served by the bot. /help is added by
// the router.
func (b *Bot) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Description: "Welcome and getting started",
			Handle:      b.cmdStart,
		},
		{
			Name:        "setup",
			Description: "Choose version, timezone and time",
			Usage:       "/setup [version HH:MM timezone]",
			Timeout:     time.Minute,
			Handle:      b.cmdSetup,
		},
		{
			Name:        "list",
			Aliases:     []string{"versions"},
			Description: "Show available Bible versions",
			Handle:      b.cmdList,
		},
		{
			Name:        "quote",
			Aliases:     []string{"verse"},
			Description: "Get a verse right now",
			Handle:      b.cmdQuote,
		},
		{
			Name:        "status",
			Description: "Show your daily verse schedule",
			Handle:      b.cmdStatus,
		},
		{
			Name:        "stop",
			Description: "Stop daily verses",
			Handle:      b.cmdStop,
		},
		{
			Name:        "stats",
			Description: "Scheduler and runtime stats",
			Access:      router.AccessOwnerOnly,
			Handle:      b.cmdStats,
		},
	}
}

// Callbacks returns the inline button routes of the setup wizard.
func (b *Bot) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: setupScope, Action: actVersion, Handle: b.cbVersion},
		{Scope: setupScope, Action: actZone, Handle: b.cbZone},
		{Scope: setupScope, Action: actTime, Handle: b.cbTime},
		{Scope: setupScope, Action: actConfirm, Timeout: time.Minute, Handle: b.cbConfirm},
		{Scope: setupScope, Action: actCancel, Handle: b.cbCancel},
	}
}
