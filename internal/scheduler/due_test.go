package scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"

	"dailyverse/internal/schedule"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadZone(name)
	if err != nil {
		t.Fatalf("LoadZone(%s): %v", name, err)
	}
	return loc
}

func TestSlot(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tz   string
		date schedule.Date
		tod  schedule.TimeOfDay
		want time.Time
	}{
		{"plain summer", "America/New_York", date(2024, 6, 3), schedule.TimeOfDay{Hour: 8}, utc(2024, 6, 3, 12, 0)},
		{"plain winter", "America/New_York", date(2024, 1, 15), schedule.TimeOfDay{Hour: 8}, utc(2024, 1, 15, 13, 0)},
		{"spring gap moves to first valid minute", "America/New_York", date(2024, 3, 10), schedule.TimeOfDay{Hour: 2, Minute: 30}, utc(2024, 3, 10, 7, 0)},
		{"spring gap start", "America/New_York", date(2024, 3, 10), schedule.TimeOfDay{Hour: 2}, utc(2024, 3, 10, 7, 0)},
		{"after spring gap", "America/New_York", date(2024, 3, 10), schedule.TimeOfDay{Hour: 3, Minute: 15}, utc(2024, 3, 10, 7, 15)},
		{"fall back uses first occurrence", "America/New_York", date(2024, 11, 3), schedule.TimeOfDay{Hour: 1, Minute: 30}, utc(2024, 11, 3, 5, 30)},
		{"half hour zone", "Asia/Kolkata", date(2024, 6, 3), schedule.TimeOfDay{Hour: 6}, time.Date(2024, 6, 3, 0, 30, 0, 0, time.UTC)},
		{"midnight", "Europe/London", date(2024, 6, 3), schedule.TimeOfDay{}, utc(2024, 6, 2, 23, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Slot(tt.date, tt.tod, mustZone(t, tt.tz))
			if !ok {
				t.Fatal("expected a slot")
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Slot = %s, want %s", got.UTC(), tt.want)
			}
		})
	}
}

func TestSlotSkippedDay(t *testing.T) {
	t.Parallel()
	// Samoa skipped 2011-12-30 entirely when it crossed the date line.
	loc := mustZone(t, "Pacific/Apia")
	if _, ok := Slot(date(2011, 12, 30), schedule.TimeOfDay{Hour: 8}, loc); ok {
		t.Fatal("a date that does not exist has no slot")
	}
	if _, ok := Slot(date(2011, 12, 31), schedule.TimeOfDay{Hour: 8}, loc); !ok {
		t.Fatal("the following day should have a slot")
	}
}

func TestDueAt(t *testing.T) {
	t.Parallel()
	loc := mustZone(t, "America/New_York")
	base := schedule.Record{RecipientID: "1", TimeOfDay: schedule.TimeOfDay{Hour: 8}, Timezone: "America/New_York"}
	delivered := base.Clone()
	d := date(2024, 6, 3)
	delivered.LastDelivered = &d
	yesterday := base.Clone()
	y := date(2024, 6, 2)
	yesterday.LastDelivered = &y
	unreachable := base.Clone()
	unreachable.MarkUnreachable("blocked", utc(2024, 6, 1, 0, 0))

	tests := []struct {
		name   string
		rec    schedule.Record
		prev   time.Time
		now    time.Time
		window time.Duration
		want   skipReason
	}{
		{"at slot", base, time.Time{}, utc(2024, 6, 3, 12, 0), 0, due},
		{"seconds into slot minute", base, time.Time{}, utc(2024, 6, 3, 12, 0).Add(45 * time.Second), 0, due},
		{"before slot", base, time.Time{}, utc(2024, 6, 3, 11, 59), 0, skipOutOfWindow},
		{"after one minute window", base, time.Time{}, utc(2024, 6, 3, 12, 1), 0, skipOutOfWindow},
		{"inside catch-up", base, time.Time{}, utc(2024, 6, 3, 12, 4), 5 * time.Minute, due},
		{"catch-up end is exclusive", base, time.Time{}, utc(2024, 6, 3, 12, 5), 5 * time.Minute, skipOutOfWindow},
		{"slot tick skipped", base, utc(2024, 6, 3, 11, 59), utc(2024, 6, 3, 12, 1), 0, due},
		{"several ticks skipped", base, utc(2024, 6, 3, 11, 30), utc(2024, 6, 3, 12, 20), 0, due},
		{"slot seen by previous tick", base, utc(2024, 6, 3, 12, 0), utc(2024, 6, 3, 12, 1), 0, skipOutOfWindow},
		{"recent tick keeps catch-up", base, utc(2024, 6, 3, 12, 3), utc(2024, 6, 3, 12, 4), 5 * time.Minute, due},
		{"already delivered", delivered, time.Time{}, utc(2024, 6, 3, 12, 0), 0, skipDelivered},
		{"delivered yesterday", yesterday, time.Time{}, utc(2024, 6, 3, 12, 0), 0, due},
		{"unreachable", unreachable, time.Time{}, utc(2024, 6, 3, 12, 0), 0, skipUnreachable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := Evaluate(tt.rec.TimeOfDay, loc, tt.now)
			if got := dueAt(tt.rec, ev, windowStart(tt.now, tt.prev, tt.window)); got != tt.want {
				t.Fatalf("dueAt = %q, want %q (slot %s)", got, tt.want, ev.Slot.UTC())
			}
		})
	}
}

func TestEvaluateUsesRecipientDate(t *testing.T) {
	t.Parallel()
	// 2024-06-03 23:30Z is already June 4th in Tokyo.
	ev := Evaluate(schedule.TimeOfDay{Hour: 8, Minute: 30}, mustZone(t, "Asia/Tokyo"), time.Date(2024, 6, 3, 23, 30, 20, 0, time.UTC))
	if ev.LocalDate != date(2024, 6, 4) {
		t.Fatalf("LocalDate = %s", ev.LocalDate)
	}
	if !ev.Now.Equal(utc(2024, 6, 3, 23, 30)) {
		t.Fatalf("Now should be truncated to the minute: %s", ev.Now)
	}
	if !ev.Slot.Equal(utc(2024, 6, 3, 23, 30)) {
		t.Fatalf("Slot = %s", ev.Slot.UTC())
	}
}

func TestNextSlot(t *testing.T) {
	t.Parallel()
	loc := mustZone(t, "America/New_York")
	rec := schedule.Record{TimeOfDay: schedule.TimeOfDay{Hour: 8}}

	if got := nextSlot(rec, loc, utc(2024, 6, 3, 10, 0), 0); !got.Equal(utc(2024, 6, 3, 12, 0)) {
		t.Fatalf("before slot: %s", got)
	}
	if got := nextSlot(rec, loc, utc(2024, 6, 3, 13, 0), 0); !got.Equal(utc(2024, 6, 4, 12, 0)) {
		t.Fatalf("after window: %s", got)
	}
	d := date(2024, 6, 3)
	rec.LastDelivered = &d
	if got := nextSlot(rec, loc, utc(2024, 6, 3, 11, 0), 0); !got.Equal(utc(2024, 6, 4, 12, 0)) {
		t.Fatalf("delivered today: %s", got)
	}
}

func TestLoadZoneRejectsHostZone(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "Local", "local", "Mars/Olympus", "EST5EDT6"} {
		if _, err := LoadZone(name); err == nil {
			t.Errorf("LoadZone(%q) should fail", name)
		}
	}
}
