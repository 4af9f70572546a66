package app

import (
	"context"
	"strings"

	"dailyverse/internal/config"
	logx "dailyverse/pkg/logx"
)

// reloadLoop applies validated config changes that can take effect live:
// logging, owners, scheduler options and the health endpoint.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(restart) > 0 {
		a.log.Warn("config changed in sections that need a restart", logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.SetTelegramTarget(logTarget(next))
	a.logs.Apply(mapLogConfig(next))

	a.setOwners(next.Telegram.OwnerUserIDs)

	if opts, err := mapSchedulerOptions(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else if err := a.sched.Apply(opts); err != nil {
		a.log.Warn("scheduler options rejected; keeping previous", logx.Err(err))
	}

	a.health.Reconfigure(ctx, mapHealthConfig(next))

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
