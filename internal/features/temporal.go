// Package features derives the engineered feature columns. All derivations
// are causal: a feature for an alert uses only that alert and state built
// from alerts at or before its timestamp.
package features

import "time"

// TemporalConfig sets the night-time boundary. An hour h is night when
// h >= NightStartHour or h < NightEndHour.
type TemporalConfig struct {
	NightStartHour int
	NightEndHour   int
}

// DefaultTemporalConfig uses the 22:00-06:00 night window.
func DefaultTemporalConfig() TemporalConfig {
	return TemporalConfig{NightStartHour: 22, NightEndHour: 6}
}

// TemporalFeatures holds the per-alert time-derived columns.
type TemporalFeatures struct {
	HourOfDay int
	DayOfWeek int // Monday=0
	IsNight   bool
}

// Temporal computes hour-of-day, day-of-week and the night flag for one
// timestamp. Pure per-alert, no cross-row state.
func Temporal(ts time.Time, cfg TemporalConfig) TemporalFeatures {
	t := ts.UTC()
	hour := t.Hour()
	return TemporalFeatures{
		HourOfDay: hour,
		DayOfWeek: (int(t.Weekday()) + 6) % 7,
		IsNight:   hour >= cfg.NightStartHour || hour < cfg.NightEndHour,
	}
}
