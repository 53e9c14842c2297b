package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Africa/Johannesburg")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestIsSlotAllowed(t *testing.T) {
	if !IsSlotAllowed("3:00 PM - 5:00 PM") {
		t.Fatalf("expected configured slot to be allowed")
	}
	if IsSlotAllowed("5:00 PM - 7:00 PM") {
		t.Fatalf("expected unknown slot to be rejected")
	}
}

func TestIsDateBookable(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	cases := []struct {
		date string
		want bool
	}{
		{"2026-02-03", false},
		{"2026-02-04", false},
		{"2026-02-05", true},
	}
	for _, tc := range cases {
		got, err := IsDateBookable(tc.date, loc, now)
		if err != nil {
			t.Fatalf("IsDateBookable(%q) error: %v", tc.date, err)
		}
		if got != tc.want {
			t.Fatalf("IsDateBookable(%q) = %v, want %v", tc.date, got, tc.want)
		}
	}

	if _, err := IsDateBookable("04/02/2026", loc, now); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestIsDateBookableLateEvening(t *testing.T) {
	loc := mustLoadLoc(t)
	// 23:30 UTC on Feb 4 is already Feb 5 in Johannesburg.
	now := time.Date(2026, 2, 4, 23, 30, 0, 0, time.UTC)
	got, err := IsDateBookable("2026-02-05", loc, now)
	if err != nil {
		t.Fatalf("IsDateBookable error: %v", err)
	}
	if got {
		t.Fatalf("expected the local day to be closed")
	}
}

func TestAvailableSlotsTomorrow(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	slots, err := AvailableSlots("2026-02-05", loc, now, map[string]bool{"1:00 PM - 3:00 PM": true})
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	want := []string{"9:00 AM - 11:00 AM", "11:00 AM - 1:00 PM", "3:00 PM - 5:00 PM"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestAvailableSlotsClosedDates(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 8, 0, 0, 0, loc)
	for _, date := range []string{"2026-02-01", "2026-02-04"} {
		slots, err := AvailableSlots(date, loc, now, nil)
		if err != nil {
			t.Fatalf("AvailableSlots error: %v", err)
		}
		if len(slots) != 0 {
			t.Fatalf("expected no slots for %s, got %v", date, slots)
		}
	}
}
