package features

// Criticality tiers, low to high.
const (
	TierLow      = 0
	TierStandard = 1
	TierElevated = 2
	TierCritical = 3
)

// CriticalityConfig maps entity types to tiers. The table is immutable
// after construction; pass it explicitly to every caller.
type CriticalityConfig struct {
	Tiers       map[string]int
	DefaultTier int
}

// DefaultCriticalityConfig ranks machines, cloud applications and domains
// as critical assets, generic artifacts lowest, everything else standard.
func DefaultCriticalityConfig() CriticalityConfig {
	return CriticalityConfig{
		Tiers: map[string]int{
			"Machine":          TierCritical,
			"CloudApplication": TierCritical,
			"Domain":           TierCritical,
			"User":             TierElevated,
			"MailMessage":      TierElevated,
			"File":             TierLow,
			"Process":          TierLow,
			"Url":              TierLow,
		},
		DefaultTier: TierStandard,
	}
}

// Criticality assigns the advisory tier for an entity type. Unknown types
// get the default tier; criticality never fails a row.
func Criticality(entityType string, cfg CriticalityConfig) int {
	if tier, ok := cfg.Tiers[entityType]; ok {
		return tier
	}
	return cfg.DefaultTier
}
