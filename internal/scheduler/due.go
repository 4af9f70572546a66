package scheduler

import (
	"time"

	"dailyverse/internal/schedule"
)

// Evaluation is one record viewed at one tick instant.
type Evaluation struct {
	Now       time.Time     // tick instant truncated to the minute
	LocalDate schedule.Date // calendar date in the recipient's zone
	Slot      time.Time     // today's delivery instant; zero if today has none
}

// Evaluate computes the recipient's local date at now and today's slot.
func Evaluate(tod schedule.TimeOfDay, loc *time.Location, now time.Time) Evaluation {
	local := now.In(loc).Truncate(time.Minute)
	date := schedule.DateOf(local)
	slot, _ := Slot(date, tod, loc)
	return Evaluation{Now: local, LocalDate: date, Slot: slot}
}

// Slot returns the first instant on date whose local wall clock is at or after
// tod. It differs from tod only when tod falls in a daylight-saving gap, in
// which case the slot is the first minute after the gap. ok is false when no
// such minute exists on date (a gap running past midnight).
func Slot(date schedule.Date, tod schedule.TimeOfDay, loc *time.Location) (time.Time, bool) {
	c := time.Date(date.Year, date.Month, date.Day, tod.Hour, tod.Minute, 0, 0, loc)
	if schedule.DateOf(c) == date && c.Hour() == tod.Hour && c.Minute() == tod.Minute {
		return c, true
	}

	// tod does not exist on date. time.Date normalised it to some nearby
	// instant; scan forward from well before it for the first minute that does.
	t := c.Add(-3 * time.Hour).Truncate(time.Minute)
	limit := c.Add(27 * time.Hour)
	for ; t.Before(limit); t = t.Add(time.Minute) {
		lt := t.In(loc)
		d := schedule.DateOf(lt)
		if d.After(date) {
			return time.Time{}, false
		}
		if d == date && wallAtOrAfter(lt, date, tod) {
			return lt, true
		}
	}
	return time.Time{}, false
}

func wallAtOrAfter(t time.Time, date schedule.Date, tod schedule.TimeOfDay) bool {
	return schedule.DateOf(t) == date && t.Hour()*60+t.Minute() >= tod.Minutes()
}

// skipReason explains why a record is not due. Empty means due.
type skipReason string

const (
	due             skipReason = ""
	skipUnreachable skipReason = "unreachable"
	skipBackoff     skipReason = "backoff"
	skipDelivered   skipReason = "delivered_today"
	skipOutOfWindow skipReason = "out_of_window"
	skipConfigError skipReason = "config_error"
	skipPanicked    skipReason = "panic"
	skipNoSlotToday skipReason = "no_slot_today"
)

// defaultWindow is one tick of the default minute schedule.
const defaultWindow = time.Minute

// windowStart returns the exclusive lower bound for slots due at now. It is
// now minus the catch-up window, pulled back to the previous observed tick
// when the ticks in between were skipped. prev is zero on the first sweep.
func windowStart(now, prev time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = defaultWindow
	}
	from := now.Truncate(time.Minute).Add(-window)
	if !prev.IsZero() {
		if p := prev.Truncate(time.Minute); p.Before(from) {
			from = p
		}
	}
	return from
}

// dueAt applies the delivery rule to a record already known not to be in backoff.
//
// A record is due when it is deliverable, has not been delivered on its
// current local date, and today's slot lies in (from, tick].
func dueAt(rec schedule.Record, ev Evaluation, from time.Time) skipReason {
	if rec.Unreachable() {
		return skipUnreachable
	}
	if rec.LastDelivered != nil && !rec.LastDelivered.Before(ev.LocalDate) {
		return skipDelivered
	}
	if ev.Slot.IsZero() {
		return skipNoSlotToday
	}
	if ev.Slot.After(ev.Now) || !ev.Slot.After(from) {
		return skipOutOfWindow
	}
	return due
}

// nextSlot returns the next slot at or after now for rec, skipping today
// when it was already delivered or its window has passed.
func nextSlot(rec schedule.Record, loc *time.Location, now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = defaultWindow
	}
	ev := Evaluate(rec.TimeOfDay, loc, now)
	if !ev.Slot.IsZero() && !rec.DeliveredOn(ev.LocalDate) && ev.Now.Before(ev.Slot.Add(window)) {
		return ev.Slot
	}
	d := ev.LocalDate
	for i := 0; i < 3; i++ {
		next := time.Date(d.Year, d.Month, d.Day+1, 12, 0, 0, 0, loc)
		d = schedule.DateOf(next)
		if s, ok := Slot(d, rec.TimeOfDay, loc); ok {
			return s
		}
	}
	return time.Time{}
}
