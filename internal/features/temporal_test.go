package features

import (
	"testing"
	"time"
)

func TestTemporalHourAndWeekday(t *testing.T) {
	// 2024-06-03 is a Monday.
	ts := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	got := Temporal(ts, DefaultTemporalConfig())
	if got.HourOfDay != 14 {
		t.Fatalf("expected hour 14, got %d", got.HourOfDay)
	}
	if got.DayOfWeek != 0 {
		t.Fatalf("expected Monday=0, got %d", got.DayOfWeek)
	}
	if got.IsNight {
		t.Fatalf("14:30 should not be night")
	}
}

func TestTemporalNightBoundary(t *testing.T) {
	cfg := DefaultTemporalConfig()
	tests := []struct {
		hour  int
		night bool
	}{
		{0, true},
		{5, true},
		{6, false},
		{21, false},
		{22, true},
		{23, true},
	}
	for _, tt := range tests {
		ts := time.Date(2024, 6, 3, tt.hour, 0, 0, 0, time.UTC)
		if got := Temporal(ts, cfg); got.IsNight != tt.night {
			t.Fatalf("hour %d: expected night=%v, got %v", tt.hour, tt.night, got.IsNight)
		}
	}
}

func TestTemporalConfigurableBoundary(t *testing.T) {
	cfg := TemporalConfig{NightStartHour: 20, NightEndHour: 8}
	ts := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	if got := Temporal(ts, cfg); !got.IsNight {
		t.Fatalf("07:00 should be night with a 20-08 boundary")
	}
}

func TestTemporalNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2024, 6, 3, 1, 0, 0, 0, loc) // 22:00 UTC the previous day
	got := Temporal(ts, DefaultTemporalConfig())
	if got.HourOfDay != 22 || !got.IsNight {
		t.Fatalf("expected 22h UTC night, got %+v", got)
	}
	if got.DayOfWeek != 6 {
		t.Fatalf("expected Sunday=6 in UTC, got %d", got.DayOfWeek)
	}
}
