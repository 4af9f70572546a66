package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"dailyverse/internal/schedule"
	"dailyverse/internal/scheduler"
	kit "dailyverse/internal/transport"
	"dailyverse/internal/transport/telegram/router"
	logx "dailyverse/pkg/logx"
	"dailyverse/pkg/tgui"
)

const (
	setupScope = "setup"
	actVersion = "v"
	actZone    = "tz"
	actTime    = "t"
	actConfirm = "ok"
	actCancel  = "x"
)

var commonTimezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Phoenix",
	"America/Anchorage",
	"Pacific/Honolulu",
	"Europe/London",
	"Europe/Paris",
	"Asia/Tokyo",
}

// timeSlots are 06:00 to 11:00 in half-hour steps.
var timeSlots = func() []schedule.TimeOfDay {
	var out []schedule.TimeOfDay
	for m := 6 * 60; m <= 11*60; m += 30 {
		out = append(out, schedule.TimeOfDay{Hour: m / 60, Minute: m % 60})
	}
	return out
}()

// wizard is the state of one user's unfinished /setup.
type wizard struct {
	Versions    map[string]string // id -> display name
	VersionID   string
	VersionName string
	Timezone    string
	Time        schedule.TimeOfDay
	TimeSet     bool
}

func (b *Bot) cmdSetup(ctx context.Context, req *router.Request) error {
	if !req.IsPrivate {
		return replyText(ctx, req, "Please message me privately to set up daily verses.")
	}
	switch len(req.Args) {
	case 0:
		return b.startWizard(ctx, req)
	case 3:
		return b.setupInline(ctx, req, req.Args[0], req.Args[1], req.Args[2])
	default:
		return reply(ctx, req, tgui.New().
			Line("Usage:").
			HTML(tgui.Code("/setup")).
			HTML(tgui.JoinH(" ", tgui.Code("/setup <version> <HH:MM> <timezone>"), tgui.Esc("e.g."), tgui.Code("/setup KJV 07:30 America/New_York"))).
			Build())
	}
}

func (b *Bot) setupInline(ctx context.Context, req *router.Request, version, tod, tz string) error {
	rec, err := b.reg.Register(ctx, recipientID(req), version, tod, tz)
	if err != nil {
		req.Logger.Info("setup rejected", logx.Err(err))
		return replyText(ctx, req, "❌ "+registrationFailure(err))
	}
	b.wizards.Delete(req.FromID)
	return reply(ctx, req, b.confirmation(rec, ""))
}

func (b *Bot) startWizard(ctx context.Context, req *router.Request) error {
	versions, err := b.reg.ListAvailableVersions(ctx)
	if err != nil || len(versions) == 0 {
		if err != nil {
			req.Logger.Warn("version catalog unavailable", logx.Err(err))
		}
		return replyText(ctx, req, "Bible versions are unavailable right now. Please try again later.")
	}

	w := wizard{Versions: map[string]string{}}
	kb := tgui.NewKeyboard()
	for _, v := range versions {
		data, err := tgui.Data(setupScope, actVersion, v.ID)
		if err != nil {
			continue
		}
		name := v.Name
		if v.Abbreviation != "" && !strings.Contains(name, v.Abbreviation) {
			name = v.Abbreviation + " - " + name
		}
		w.Versions[v.ID] = name
		kb.Row(tgui.Btn(tgui.TruncRunes(name, 40), data))
	}
	kb.Row(cancelButton())
	b.wizards.Put(req.FromID, w)

	return reply(ctx, req, tgui.New().
		Title("📖", "Step 1 of 3: Bible version").
		Line("Choose a Bible version for your daily verses.").
		Keyboard(kb).
		Build())
}

func cancelButton() kit.Button {
	return tgui.Btn("✖ Cancel", tgui.MustData(setupScope, actCancel, ""))
}

// session loads the caller's wizard or tells them it has expired.
func (b *Bot) session(ctx context.Context, req *router.Request) (wizard, bool) {
	w, ok := b.wizards.Get(req.FromID)
	if !ok {
		_ = b.edit(ctx, req, tgui.New().Line("This setup has expired. Send /setup to start again.").Build())
	}
	return w, ok
}

func (b *Bot) edit(ctx context.Context, req *router.Request, m tgui.Message) error {
	return m.Edit(ctx, req.Adapter, kit.MessageRef{ChatID: req.Chat.ChatID, MessageID: req.MessageID})
}

func (b *Bot) cbVersion(ctx context.Context, req *router.Request, payload string) error {
	w, ok := b.session(ctx, req)
	if !ok {
		return nil
	}
	name, ok := w.Versions[payload]
	if !ok {
		return nil
	}
	w.VersionID, w.VersionName = payload, name
	b.wizards.Put(req.FromID, w)

	btns := make([]kit.Button, 0, len(commonTimezones))
	for i, tz := range commonTimezones {
		btns = append(btns, tgui.Btn(zoneLabel(tz), tgui.MustData(setupScope, actZone, strconv.Itoa(i))))
	}
	return b.edit(ctx, req, tgui.New().
		Title("🌍", "Step 2 of 3: Timezone").
		KV("Version", name).
		Line("Pick your timezone.").
		HTML(tgui.JoinH(" ", tgui.Esc("Not listed? Use"), tgui.Code("/setup <version> <HH:MM> <timezone>"))).
		Keyboard(tgui.NewKeyboard().Grid(2, btns...).Row(cancelButton())).
		Build())
}

func (b *Bot) cbZone(ctx context.Context, req *router.Request, payload string) error {
	w, ok := b.session(ctx, req)
	if !ok || w.VersionID == "" {
		return nil
	}
	i, err := strconv.Atoi(payload)
	if err != nil || i < 0 || i >= len(commonTimezones) {
		return nil
	}
	w.Timezone = commonTimezones[i]
	b.wizards.Put(req.FromID, w)

	btns := make([]kit.Button, 0, len(timeSlots))
	for _, t := range timeSlots {
		btns = append(btns, tgui.Btn(clockLabel(t), tgui.MustData(setupScope, actTime, strings.ReplaceAll(t.String(), ":", ""))))
	}
	return b.edit(ctx, req, tgui.New().
		Title("⏰", "Step 3 of 3: Time").
		KV("Version", w.VersionName).
		KV("Timezone", w.Timezone).
		Line("When would you like your daily verse?").
		Keyboard(tgui.NewKeyboard().Grid(3, btns...).Row(cancelButton())).
		Build())
}

func (b *Bot) cbTime(ctx context.Context, req *router.Request, payload string) error {
	w, ok := b.session(ctx, req)
	if !ok || w.Timezone == "" {
		return nil
	}
	if len(payload) != 4 {
		return nil
	}
	t, err := schedule.ParseTimeOfDay(payload[:2] + ":" + payload[2:])
	if err != nil {
		return nil
	}
	w.Time, w.TimeSet = t, true
	b.wizards.Put(req.FromID, w)

	kb := tgui.NewKeyboard().Row(
		tgui.Btn("✅ Confirm", tgui.MustData(setupScope, actConfirm, "")),
		tgui.Btn("❌ Cancel", tgui.MustData(setupScope, actCancel, "")),
	)
	return b.edit(ctx, req, tgui.New().
		Title("✅", "Confirm your settings").
		KV("Version", w.VersionName).
		KV("Timezone", w.Timezone).
		KV("Time", clockLabel(w.Time)).
		Keyboard(kb).
		Build())
}

func (b *Bot) cbConfirm(ctx context.Context, req *router.Request, _ string) error {
	w, ok := b.session(ctx, req)
	if !ok || !w.TimeSet {
		return nil
	}
	rec, err := b.reg.Register(ctx, recipientID(req), w.VersionID, w.Time.String(), w.Timezone)
	if err != nil {
		req.Logger.Warn("wizard registration failed", logx.Err(err))
		return b.edit(ctx, req, tgui.New().Line("❌ "+registrationFailure(err)).Build())
	}
	b.wizards.Delete(req.FromID)
	return b.edit(ctx, req, b.confirmation(rec, w.VersionName))
}

func (b *Bot) cbCancel(ctx context.Context, req *router.Request, _ string) error {
	b.wizards.Delete(req.FromID)
	return b.edit(ctx, req, tgui.New().
		Title("❌", "Setup cancelled").
		Line("No changes were made.").
		Build())
}

func (b *Bot) confirmation(rec schedule.Record, versionName string) tgui.Message {
	if versionName == "" {
		versionName = rec.ContentVersion
	}
	bl := tgui.New().
		Title("🎉", "Daily verses scheduled").
		KV("Version", versionName).
		KV("Timezone", rec.Timezone).
		KV("Time", clockLabel(rec.TimeOfDay))
	if next, err := b.reg.NextDelivery(rec); err == nil {
		if loc, err := scheduler.LoadZone(rec.Timezone); err == nil {
			next = next.In(loc)
		}
		bl.KV("First verse", next.Format("Mon 2 Jan 15:04"))
	}
	return bl.Blank().Line("Use /status to check and /stop to unsubscribe.").Build()
}

// zoneLabel renders "America/New_York" as "New York (America)".
func zoneLabel(tz string) string {
	region, city, ok := strings.Cut(tz, "/")
	if !ok {
		return tz
	}
	if i := strings.LastIndexByte(city, '/'); i >= 0 {
		city = city[i+1:]
	}
	return strings.ReplaceAll(city, "_", " ") + " (" + region + ")"
}

func clockLabel(t schedule.TimeOfDay) string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("3:04 PM")
}
