package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("schedule not found")

	// ErrNoChange is returned by an Update callback to abort without writing.
	ErrNoChange = errors.New("schedule unchanged")
)

// TimeOfDay is a local wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var reTimeOfDay = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseTimeOfDay parses "H:MM" or "HH:MM" (24h).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	m := reTimeOfDay.FindStringSubmatch(raw)
	if len(m) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q (use HH:MM, 24h)", raw)
	}
	hh := int(m[1][0] - '0')
	if len(m[1]) == 2 {
		hh = hh*10 + int(m[1][1]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	t := TimeOfDay{Hour: hh, Minute: mm}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("invalid time %q (hour 0-23, minute 0-59)", raw)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Minutes returns minutes since local midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Date is a calendar date without a location. It is always interpreted in the
// recipient's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool { return o.Before(d) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Record is the persisted schedule and rotation state of one recipient.
//
// JSON tags are the on-disk layout. Unknown fields are ignored on read and
// optional fields default to their zero value, so older files stay readable.
type Record struct {
	RecipientID    string    `json:"recipient_id"`
	ContentVersion string    `json:"content_version"`
	TimeOfDay      TimeOfDay `json:"time_of_day"`
	Timezone       string    `json:"timezone"`
	RotationCursor int       `json:"rotation_cursor"`
	LastDelivered  *Date     `json:"last_delivered_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Set when the channel reported the recipient permanently unreachable.
	// Cleared only by re-registration.
	UnreachableSince  *time.Time `json:"unreachable_since,omitempty"`
	UnreachableReason string     `json:"unreachable_reason,omitempty"`
}

func (r Record) Unreachable() bool { return r.UnreachableSince != nil }

// DeliveredOn reports whether the recipient already got the message for local date d.
func (r Record) DeliveredOn(d Date) bool {
	return r.LastDelivered != nil && !r.LastDelivered.Before(d)
}

// MarkDelivered records a confirmed delivery for local date d and advances the
// rotation cursor modulo n. last_delivered_date never moves backwards.
func (r *Record) MarkDelivered(d Date, n int, now time.Time) {
	if r.LastDelivered == nil || r.LastDelivered.Before(d) {
		dd := d
		r.LastDelivered = &dd
	}
	if n > 0 {
		r.RotationCursor = (r.RotationCursor%n + 1) % n
	} else {
		r.RotationCursor++
	}
	r.UpdatedAt = now
}

// MarkUnreachable flags the recipient as undeliverable.
func (r *Record) MarkUnreachable(reason string, now time.Time) {
	t := now
	r.UnreachableSince = &t
	r.UnreachableReason = reason
	r.UpdatedAt = now
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	cp := r
	if r.LastDelivered != nil {
		d := *r.LastDelivered
		cp.LastDelivered = &d
	}
	if r.UnreachableSince != nil {
		t := *r.UnreachableSince
		cp.UnreachableSince = &t
	}
	return cp
}
