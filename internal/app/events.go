package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dailyverse/internal/eventbus"
	"dailyverse/internal/scheduler"
	kit "dailyverse/internal/transport"
	logx "dailyverse/pkg/logx"
	"dailyverse/pkg/systemd"
	"dailyverse/pkg/tgui"
)

// eventLoop forwards recipient problems to the owners and turns finished
// sweeps into systemd watchdog pings.
func (a *App) eventLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.handleEvent(ctx, e)
		}
	}
}

func (a *App) handleEvent(ctx context.Context, e eventbus.Event) {
	switch e.Type {
	case eventbus.RecipientConfigError, eventbus.RecipientUnreachable:
		issue, ok := e.Data.(eventbus.RecipientIssue)
		if !ok {
			return
		}
		title := "Recipient needs attention"
		if e.Type == eventbus.RecipientUnreachable {
			title = "Recipient unreachable"
		}
		msg := tgui.New().
			Title("⚠️", title).
			KV("Recipient", issue.RecipientID).
			KV("Reason", issue.Reason).
			Build()
		a.notifyOwners(ctx, msg)

	case eventbus.SweepFinished:
		rep, ok := e.Data.(scheduler.SweepReport)
		if !ok {
			return
		}
		_, _ = systemd.Watchdog()
		_, _ = systemd.Status(fmt.Sprintf("last sweep %s: %d due, %d delivered, %d failed",
			rep.At.UTC().Format(time.TimeOnly), rep.Due, rep.Delivered, rep.Failed))

	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}

func (a *App) notifyOwners(ctx context.Context, msg tgui.Message) {
	for _, id := range a.currentOwners() {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := msg.Send(cctx, a.adapter, kit.ChatTarget{ChatID: id})
		cancel()
		if err != nil {
			a.log.Warn("owner notification failed", logx.Int64("owner", id), logx.Err(err))
		}
	}
}

// notifyStartup DMs the owners once the bot is up.
func (a *App) notifyStartup(ctx context.Context) {
	st := a.sched.Status(ctx)
	health := "disabled"
	if a.health.Enabled() {
		health = "listening on " + mapHealthConfig(a.cfgm.Get()).Addr
	}
	msg := tgui.New().
		Title("🤖", "Daily Verse online").
		Line("✅ Connected").
		Line("✅ Scheduler active ("+st.Tick+")").
		Line("📋 "+strconv.Itoa(st.Recipients)+" schedule(s) loaded").
		KV("Keep-alive", health).
		Build()
	a.notifyOwners(ctx, msg)
	a.log.Info("bot ready", logx.Int("schedules", st.Recipients))
}
