package schedule

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "08:00", want: TimeOfDay{8, 0}},
		{raw: "8:05", want: TimeOfDay{8, 5}},
		{raw: " 23:59 ", want: TimeOfDay{23, 59}},
		{raw: "00:00", want: TimeOfDay{0, 0}},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "1200", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "ab:cd", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeOfDay(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	t.Parallel()
	a := Date{2024, time.March, 9}
	b := Date{2024, time.March, 10}
	c := Date{2025, time.January, 1}
	if !a.Before(b) || !b.Before(c) || !a.Before(c) {
		t.Fatal("expected a < b < c")
	}
	if b.Before(a) || a.Before(a) {
		t.Fatal("Before must be strict")
	}
	if !c.After(a) {
		t.Fatal("expected c after a")
	}
}

func TestMarkDeliveredAdvancesAndWraps(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := Record{RotationCursor: 2}
	r.MarkDelivered(Date{2024, time.May, 1}, 3, now)
	if r.RotationCursor != 0 {
		t.Fatalf("cursor = %d, want 0 after wrap", r.RotationCursor)
	}
	if r.LastDelivered == nil || *r.LastDelivered != (Date{2024, time.May, 1}) {
		t.Fatalf("last delivered = %v", r.LastDelivered)
	}

	// An older date never moves the marker backwards.
	r.MarkDelivered(Date{2024, time.April, 30}, 3, now)
	if *r.LastDelivered != (Date{2024, time.May, 1}) {
		t.Fatalf("last delivered moved backwards to %v", r.LastDelivered)
	}
	if !r.DeliveredOn(Date{2024, time.May, 1}) || r.DeliveredOn(Date{2024, time.May, 2}) {
		t.Fatal("DeliveredOn mismatch")
	}
}

func TestRecordJSONLayout(t *testing.T) {
	t.Parallel()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Record{
		RecipientID:    "42",
		ContentVersion: "de4e12af7f28f599-02",
		TimeOfDay:      TimeOfDay{8, 0},
		Timezone:       "America/New_York",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"time_of_day":"08:00"`) {
		t.Fatalf("time_of_day not rendered as HH:MM: %s", s)
	}
	if strings.Contains(s, "last_delivered_date") || strings.Contains(s, "unreachable_since") {
		t.Fatalf("absent optional fields must be omitted: %s", s)
	}

	// Older/newer files: unknown fields ignored, missing optional fields defaulted.
	in := `{"recipient_id":"7","content_version":"x","time_of_day":"6:30","timezone":"UTC","last_delivered_date":"2024-02-29","future_field":true}`
	var got Record
	if err := json.Unmarshal([]byte(in), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TimeOfDay != (TimeOfDay{6, 30}) || got.RotationCursor != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.LastDelivered == nil || *got.LastDelivered != (Date{2024, time.February, 29}) {
		t.Fatalf("last delivered = %v", got.LastDelivered)
	}
}
