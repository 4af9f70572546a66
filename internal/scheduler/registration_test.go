package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dailyverse/internal/eventbus"
)

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		id      string
		version string
		tod     string
		tz      string
		field   string
		want    error
	}{
		{"empty id", " ", "KJV", "08:00", "UTC", "recipient_id", ErrInvalidID},
		{"hour out of range", "1", "KJV", "25:00", "UTC", "time_of_day", ErrInvalidTime},
		{"not a time", "1", "KJV", "8am", "UTC", "time_of_day", ErrInvalidTime},
		{"unknown zone", "1", "KJV", "08:00", "Mars/Base", "timezone", ErrInvalidTimezone},
		{"host zone", "1", "KJV", "08:00", "Local", "timezone", ErrInvalidTimezone},
		{"unknown version", "1", "NIV", "08:00", "UTC", "version", ErrInvalidVersion},
		{"empty version", "1", "", "08:00", "UTC", "version", ErrInvalidVersion},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, Options{})
			_, err := h.svc.Register(context.Background(), tt.id, tt.version, tt.tod, tt.tz)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var re *RegistrationError
			if !errors.As(err, &re) || re.Field != tt.field {
				t.Fatalf("err = %#v, want field %s", err, tt.field)
			}
			recs, _ := h.store.List(context.Background())
			if len(recs) != 0 {
				t.Fatal("failed validation must not touch the store")
			}
		})
	}
}

func TestRegisterCatalogUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Options{})
	h.prov.versionsErr = errBoom

	_, err := h.svc.Register(context.Background(), "1", "KJV", "08:00", "UTC")
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("err = %v", err)
	}
	var re *RegistrationError
	if errors.As(err, &re) {
		t.Fatal("catalog outage is not a validation error")
	}
	if _, err := h.svc.ListAvailableVersions(context.Background()); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("ListAvailableVersions err = %v", err)
	}
}

func TestRegisterAcceptsIDAndCaseInsensitiveAbbreviation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Options{})
	if rec := h.register(t, "1", "web", "7:05", "Europe/London"); rec.ContentVersion != "web-id" || rec.TimeOfDay.String() != "07:05" {
		t.Fatalf("record: %+v", rec)
	}
	if rec := h.register(t, "2", "kjv-id", "07:00", "UTC"); rec.ContentVersion != "kjv-id" {
		t.Fatalf("record: %+v", rec)
	}
	vs, err := h.svc.ListAvailableVersions(context.Background())
	if err != nil || len(vs) == 0 {
		t.Fatalf("versions: %v %v", vs, err)
	}
}

func TestUnregisterAndLookup(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.register(t, "1", "KJV", "08:00", "UTC")

	if _, ok, err := h.svc.Lookup(ctx, "1"); err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	ok, err := h.svc.Unregister(ctx, "1")
	if err != nil || !ok {
		t.Fatalf("Unregister: ok=%v err=%v", ok, err)
	}
	if ok, _ := h.svc.Unregister(ctx, "1"); ok {
		t.Fatal("second Unregister should report nothing removed")
	}
	if rep := h.svc.Sweep(ctx, utc(2024, 6, 3, 8, 0)); rep.Evaluated != 0 || rep.Delivered != 0 {
		t.Fatalf("unregistered recipient still swept: %+v", rep)
	}
}

func TestUnregisterTrimsIDForAllState(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.register(t, "7", "KJV", "08:00", "UTC")
	now := utc(2024, 6, 3, 8, 0)
	h.svc.backoff.fail(now, "7", time.Hour, 2*time.Hour)
	h.svc.reportIssue(eventbus.RecipientConfigError, "7", "bad version")

	ok, err := h.svc.Unregister(ctx, " 7 ")
	if err != nil || !ok {
		t.Fatalf("Unregister: ok=%v err=%v", ok, err)
	}
	if n := h.svc.backoff.active(now); n != 0 {
		t.Fatalf("backoff entries left: %d", n)
	}
	if _, ok := h.svc.reported.Load("7"); ok {
		t.Fatal("reported issue left behind")
	}
}

func TestNextDelivery(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Options{})
	h.svc.now = func() time.Time { return utc(2024, 6, 3, 10, 0) }
	rec := h.register(t, "1", "KJV", "08:00", "America/New_York")

	next, err := h.svc.NextDelivery(rec)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Equal(utc(2024, 6, 3, 12, 0)) {
		t.Fatalf("NextDelivery = %s", next.UTC())
	}
	rec.Timezone = "Nowhere/Special"
	if _, err := h.svc.NextDelivery(rec); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("err = %v", err)
	}
}

func TestQuoteLeavesScheduleUntouched(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.register(t, "1", "WEB", "08:00", "UTC")
	before := h.bytes(t)

	msg, err := h.svc.Quote(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.Text, "WEB") || !strings.Contains(msg.Text, "text of ") {
		t.Fatalf("quote text: %s", msg.Text)
	}
	if string(before) != string(h.bytes(t)) {
		t.Fatal("Quote must not change stored state")
	}

	msg, err = h.svc.Quote(ctx, "stranger")
	if err != nil || !strings.Contains(msg.Text, "KJV") {
		t.Fatalf("unregistered quote should use the default version: %v %s", err, msg.Text)
	}
}
