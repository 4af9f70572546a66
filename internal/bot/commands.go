package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"dailyverse/internal/scheduler"
	kit "dailyverse/internal/transport"
	"dailyverse/internal/transport/telegram/router"
	logx "dailyverse/pkg/logx"
	"dailyverse/pkg/tgui"
)

func recipientID(req *router.Request) string {
	return strconv.FormatInt(req.Chat.ChatID, 10)
}

func reply(ctx context.Context, req *router.Request, m tgui.Message) error {
	_, err := m.Send(ctx, req.Adapter, req.Chat)
	return err
}

func replyText(ctx context.Context, req *router.Request, text string) error {
	return reply(ctx, req, tgui.New().Line(text).Build())
}

func (b *Bot) cmdStart(ctx context.Context, req *router.Request) error {
	m := tgui.New().
		Title("👋", "Welcome to Daily Verse!").
		Blank().
		Line("I'll send you a Bible verse every day at a time of your choosing.").
		Blank().
		HTML(tgui.JoinH("", tgui.Raw("Run "), tgui.Code("/setup"), tgui.Raw(" and I'll walk you through picking your Bible version, timezone and delivery time."))).
		HTML(tgui.JoinH("", tgui.Raw("Want one now? Try "), tgui.Code("/quote"), tgui.Raw("."))).
		Blank().
		Line("Have a blessed day! 🙏").
		Build()
	return reply(ctx, req, m)
}

func (b *Bot) cmdList(ctx context.Context, req *router.Request) error {
	versions, err := b.reg.ListAvailableVersions(ctx)
	if err != nil {
		req.Logger.Warn("version catalog unavailable", logx.Err(err))
		return replyText(ctx, req, "Bible versions are unavailable right now. Please try again later.")
	}
	if len(versions) == 0 {
		return replyText(ctx, req, "No Bible versions found.")
	}
	bl := tgui.New().Title("📚", "Available Bible Versions").Blank()
	for _, v := range versions {
		name := tgui.B(v.Name)
		if v.Abbreviation != "" {
			name = tgui.JoinH(" ", tgui.B(v.Abbreviation), tgui.Esc("- "+v.Name))
		}
		bl.HTML(name).HTML(tgui.Code(v.ID)).Blank()
	}
	bl.Line("Use /setup to configure your daily verses")
	return reply(ctx, req, bl.Build())
}

func (b *Bot) cmdQuote(ctx context.Context, req *router.Request) error {
	msg, err := b.reg.Quote(ctx, recipientID(req))
	if err != nil {
		req.Logger.Warn("quote failed", logx.Err(err))
		return replyText(ctx, req, "Couldn't fetch a verse right now. Please try again later.")
	}
	_, err = req.Reply(ctx, msg.Text, &kit.SendOptions{ParseMode: msg.Format, DisablePreview: true})
	return err
}

func (b *Bot) cmdStatus(ctx context.Context, req *router.Request) error {
	rec, ok, err := b.reg.Lookup(ctx, recipientID(req))
	if err != nil {
		return err
	}
	if !ok {
		return replyText(ctx, req, "You have no daily verse scheduled. Send /setup to start.")
	}

	bl := tgui.New().Title("📅", "Your Daily Verse").
		KV("Version", rec.ContentVersion).
		KV("Time", rec.TimeOfDay.String()).
		KV("Timezone", rec.Timezone)
	if rec.LastDelivered != nil {
		bl.KV("Last sent", rec.LastDelivered.String())
	}
	switch {
	case rec.Unreachable():
		bl.Blank().Line("⚠️ Deliveries are paused because I couldn't reach you. Run /setup again to resume.")
	default:
		if next, err := b.reg.NextDelivery(rec); err == nil {
			loc, _ := scheduler.LoadZone(rec.Timezone)
			bl.KV("Next", next.In(loc).Format("Mon 2 Jan 15:04 MST"))
		} else {
			bl.Blank().Line("⚠️ Your timezone is no longer recognised. Run /setup to pick another.")
		}
	}
	return reply(ctx, req, bl.Build())
}

func (b *Bot) cmdStop(ctx context.Context, req *router.Request) error {
	b.wizards.Delete(req.FromID)
	ok, err := b.reg.Unregister(ctx, recipientID(req))
	if err != nil {
		return err
	}
	if !ok {
		return replyText(ctx, req, "You had no daily verse scheduled.")
	}
	return replyText(ctx, req, "🛑 Daily verses stopped. Send /setup any time to start again.")
}

func (b *Bot) cmdStats(ctx context.Context, req *router.Request) error {
	st := b.reg.Status(ctx)
	last := st.LastSweep

	bl := tgui.New().Title("📊", "Scheduler").
		KV("Loop", map[bool]string{true: "running", false: "stopped"}[st.Running]).
		KV("Tick", st.Tick).
		KV("Recipients", humanize.Comma(int64(st.Recipients))).
		KV("Backed off", humanize.Comma(int64(st.BackedOff))).
		KV("Sweeps", humanize.Comma(int64(st.Sweeps)))
	if !st.NextTick.IsZero() {
		bl.KV("Next tick", st.NextTick.UTC().Format(time.DateTime+" UTC"))
	}
	if !last.At.IsZero() {
		bl.Blank().Title("", "Last sweep").
			KV("At", last.At.UTC().Format(time.DateTime+" UTC")+" ("+humanize.Time(last.At)+")").
			KV("Took", last.Took.Round(time.Millisecond).String()).
			KV("Result", fmt.Sprintf("%d due, %d delivered, %d failed, %d skipped", last.Due, last.Delivered, last.Failed, last.Skipped))
		if last.Err != "" {
			bl.KV("Error", last.Err)
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	bl.Blank().Title("", "Runtime").
		KV("Up since", humanize.RelTime(b.startedAt, time.Now(), "ago", "from now")).
		KV("Heap", humanize.IBytes(mem.HeapAlloc)).
		KV("Goroutines", strconv.Itoa(runtime.NumGoroutine()))
	if b.tasks != nil {
		tasks := b.tasks()
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
		for _, t := range tasks {
			v := fmt.Sprintf("active=%d restarts=%d panics=%d", t.Active, t.Restarts, t.Panics)
			if t.LastErr != "" {
				v += " err=" + tgui.TruncRunes(t.LastErr, 60)
			}
			bl.KV(t.Name, v)
		}
	}
	return reply(ctx, req, bl.Build())
}

// registrationFailure turns a Register error into a message that names the
// offending field.
func registrationFailure(err error) string {
	var re *scheduler.RegistrationError
	switch {
	case errors.As(err, &re):
		switch re.Field {
		case "version":
			return fmt.Sprintf("Unknown Bible version %q. Send /list to see the options.", re.Value)
		case "time_of_day":
			return fmt.Sprintf("Invalid time %q. Use HH:MM in 24-hour form, e.g. 07:30.", re.Value)
		case "timezone":
			return fmt.Sprintf("Unknown timezone %q. Use a name like America/New_York.", re.Value)
		}
		return "Invalid " + re.Field + "."
	case errors.Is(err, scheduler.ErrCatalogUnavailable):
		return "Bible versions are unavailable right now. Please try again later."
	default:
		return "Something went wrong saving your schedule. Please try again."
	}
}
