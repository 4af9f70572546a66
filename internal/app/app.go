package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dailyverse/internal/bot"
	"dailyverse/internal/config"
	"dailyverse/internal/content"
	"dailyverse/internal/eventbus"
	"dailyverse/internal/health"
	rtsup "dailyverse/internal/runtime/supervisor"
	"dailyverse/internal/schedule"
	"dailyverse/internal/scheduler"
	"dailyverse/internal/storage"
	kit "dailyverse/internal/transport"
	telegram "dailyverse/internal/transport/telegram/adapter"
	"dailyverse/internal/transport/telegram/router"
	logx "dailyverse/pkg/logx"
	"dailyverse/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   schedule.Store
	adapter *telegram.Adapter
	sched   *scheduler.Service
	cmdm    *router.CommandManager
	bot     *bot.Bot
	health  *health.Service

	ownersMu sync.RWMutex
	owners   []int64

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(adCfg, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately; Telegram output is enabled only after the
	// target chat is set so Apply does not warn about a missing target.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	logSvc.SetTelegramTarget(logTarget(cfg))
	logSvc.Apply(logCfg)

	appLog := log.With(logx.String("comp", "app"))

	stCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	ccfg, err := mapContentConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	provider, err := content.NewClient(ccfg, log.With(logx.String("comp", "content")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := eventbus.New()
	opts, err := mapSchedulerOptions(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched, err := scheduler.New(opts, store, provider, ad, bus, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sched:   sched,
		owners:  cfg.Telegram.OwnerUserIDs,
		updates: make(chan kit.Update, 256),
	}
	a.cmdm = router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	a.bot = bot.New(sched, log.With(logx.String("comp", "bot")), bot.WithTasks(a.taskStats))
	a.health = health.New(mapHealthConfig(cfg), sched.Status, log.With(logx.String("comp", "health")))
	return a, nil
}

// Done is closed when the app supervisor is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}
	a.cmdm.SetRegistry(runCtx, a.bot.Commands(), a.bot.Callbacks())
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	if err := a.sched.Start(runCtx); err != nil {
		return err
	}
	if a.health.Enabled() {
		a.health.Start(runCtx)
	}

	a.sup.Go0("events", a.eventLoop)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithRestartBackoff(time.Second, time.Minute))
	a.sup.Go0("notify.startup", a.notifyStartup)

	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	// The scheduler waits for an in-flight sweep, so it goes before the
	// adapter it sends through and the store it writes to.
	a.step(ctx, "scheduler", 5*time.Second, a.sched.Stop)
	a.step(ctx, "health", time.Second, func(c context.Context) error { a.health.Stop(c); return nil })
	a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) currentOwners() []int64 {
	a.ownersMu.RLock()
	defer a.ownersMu.RUnlock()
	return append([]int64(nil), a.owners...)
}

func (a *App) setOwners(ids []int64) {
	a.ownersMu.Lock()
	a.owners = append([]int64(nil), ids...)
	a.ownersMu.Unlock()
	a.cmdm.SetOwners(ids)
}

// taskStats merges the app, adapter and dispatcher supervisors for /stats.
func (a *App) taskStats() []rtsup.TaskStats {
	var out []rtsup.TaskStats
	add := func(prefix string, s *rtsup.Supervisor) {
		if s == nil {
			return
		}
		for _, t := range s.Snapshot() {
			t.Name = prefix + t.Name
			out = append(out, t)
		}
	}
	add("app.", a.sup)
	add("telegram.", a.adapter.Supervisor())
	add("router.", a.cmdm.Supervisor())
	add("health.", a.health.Supervisor())
	return out
}

func parseChatID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty chat id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", s, err)
	}
	return id, nil
}
