package features

import "testing"

func TestCriticalityTiers(t *testing.T) {
	cfg := DefaultCriticalityConfig()
	tests := []struct {
		entity string
		want   int
	}{
		{"Machine", TierCritical},
		{"CloudApplication", TierCritical},
		{"Domain", TierCritical},
		{"User", TierElevated},
		{"File", TierLow},
		{"Ip", TierStandard},       // not in the table
		{"missing", TierStandard},  // null category
	}
	for _, tt := range tests {
		if got := Criticality(tt.entity, cfg); got != tt.want {
			t.Fatalf("%s: expected tier %d, got %d", tt.entity, tt.want, got)
		}
	}
}

func TestCriticalityCustomTable(t *testing.T) {
	cfg := CriticalityConfig{
		Tiers:       map[string]int{"Mailbox": TierCritical},
		DefaultTier: TierLow,
	}
	if got := Criticality("Mailbox", cfg); got != TierCritical {
		t.Fatalf("expected custom tier, got %d", got)
	}
	if got := Criticality("Machine", cfg); got != TierLow {
		t.Fatalf("expected custom default, got %d", got)
	}
}
