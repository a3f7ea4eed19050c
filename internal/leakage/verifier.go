// Package leakage validates a partitioned feature set before export. It is
// a pure validation pass: it reports violations and never repairs them.
package leakage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"triagepipe/internal/features"
	"triagepipe/internal/labels"
	"triagepipe/internal/split"
	"triagepipe/pkg/models"
)

// Check names as they appear in leakage_report.json.
const (
	CheckIncidentDisjointness   = "incident_disjointness"
	CheckTemporalCutoffOrder    = "temporal_cutoff_order"
	CheckCausalFeatureRecompute = "causal_feature_recompute"
	CheckDistributionBounds     = "distribution_bounds"
)

// Error reports a fatal leakage violation. A dataset that fails these
// checks must never be published.
type Error struct {
	Check  string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("leakage: check %s failed: %s", e.Check, e.Detail)
}

// Config controls the verifier.
type Config struct {
	// Relaxed downgrades recompute mismatches to warnings, for
	// exploratory runs only.
	Relaxed bool
	// Policy is the partition policy used; the cutoff-order check only
	// applies to temporal partitioning.
	Policy string
	// Distribution bounds. Violations are advisory.
	MaxNullRate   float64
	MinLabelShare float64
	MaxLabelShare float64
	Workers       int
}

// Input is the verifier's view of one finished run. Alerts and Records of
// a split are positionally aligned: Records[s][i] was derived from
// Alerts[s][i].
type Input struct {
	Records   map[models.Split][]*models.FeatureRecord
	Alerts    map[models.Split][]*models.Alert
	NullRates map[string]float64
}

// Verify runs all checks and returns the report. The report is always
// produced; the error is non-nil when a fatal check failed.
func Verify(ctx context.Context, in Input, cfg Config) (*models.LeakageReport, error) {
	report := &models.LeakageReport{}
	var fatal *Error

	record := func(check models.LeakageCheck, isFatal bool) {
		report.Checks = append(report.Checks, check)
		if isFatal && check.Status == models.CheckFail && fatal == nil {
			fatal = &Error{Check: check.CheckName, Detail: check.Detail}
		}
	}

	record(checkIncidentDisjointness(in), true)
	record(checkTemporalCutoffOrder(in, cfg), true)
	recompute, err := checkCausalRecompute(ctx, in, cfg)
	if err != nil {
		return report, err
	}
	record(recompute, !cfg.Relaxed)
	record(checkDistributionBounds(in, cfg), false)

	if fatal != nil {
		return report, fatal
	}
	return report, nil
}

// checkIncidentDisjointness asserts that no incident id appears in two
// split files. It inspects the exported records, not the assignment map,
// so a buggy partitioner cannot vouch for itself.
func checkIncidentDisjointness(in Input) models.LeakageCheck {
	seen := make(map[int64]models.Split, 1024)
	for _, s := range models.Splits {
		for _, rec := range in.Records[s] {
			if prev, ok := seen[rec.IncidentID]; ok && prev != s {
				return models.LeakageCheck{
					CheckName: CheckIncidentDisjointness,
					Status:    models.CheckFail,
					Detail:    fmt.Sprintf("incident %d appears in both %s and %s", rec.IncidentID, prev, s),
				}
			}
			seen[rec.IncidentID] = s
		}
	}
	return models.LeakageCheck{
		CheckName: CheckIncidentDisjointness,
		Status:    models.CheckPass,
		Detail:    fmt.Sprintf("%d incidents, pairwise disjoint", len(seen)),
	}
}

// checkTemporalCutoffOrder asserts that under temporal partitioning no
// train alert is later than the earliest validation/test alert.
func checkTemporalCutoffOrder(in Input, cfg Config) models.LeakageCheck {
	if cfg.Policy != split.PolicyTemporal {
		return models.LeakageCheck{
			CheckName: CheckTemporalCutoffOrder,
			Status:    models.CheckPass,
			Detail:    fmt.Sprintf("not applicable under %s partitioning", cfg.Policy),
		}
	}

	var latestTrain time.Time
	for _, rec := range in.Records[models.SplitTrain] {
		if rec.Timestamp.After(latestTrain) {
			latestTrain = rec.Timestamp
		}
	}

	earliestHoldout := time.Time{}
	for _, s := range []models.Split{models.SplitValidation, models.SplitTest} {
		for _, rec := range in.Records[s] {
			if earliestHoldout.IsZero() || rec.Timestamp.Before(earliestHoldout) {
				earliestHoldout = rec.Timestamp
			}
		}
	}

	if !earliestHoldout.IsZero() && latestTrain.After(earliestHoldout) {
		return models.LeakageCheck{
			CheckName: CheckTemporalCutoffOrder,
			Status:    models.CheckFail,
			Detail: fmt.Sprintf("latest train alert %s is after earliest holdout alert %s",
				latestTrain.Format(time.RFC3339), earliestHoldout.Format(time.RFC3339)),
		}
	}
	return models.LeakageCheck{
		CheckName: CheckTemporalCutoffOrder,
		Status:    models.CheckPass,
		Detail:    "train precedes validation/test at the cutoff",
	}
}

// checkCausalRecompute recomputes burst/inter-arrival per split in
// isolation and compares against the exported values. Any mismatch means
// the feature pass consulted rows outside the split.
func checkCausalRecompute(ctx context.Context, in Input, cfg Config) (models.LeakageCheck, error) {
	for _, s := range models.Splits {
		alerts := in.Alerts[s]
		records := in.Records[s]
		if len(alerts) != len(records) {
			return models.LeakageCheck{}, fmt.Errorf("leakage: split %s: %d alerts but %d records", s, len(alerts), len(records))
		}
		if len(alerts) == 0 {
			continue
		}

		recomputed, err := features.ComputeVelocity(ctx, alerts, cfg.Workers)
		if err != nil {
			return models.LeakageCheck{}, err
		}
		for i, v := range recomputed {
			if v.BurstCount != records[i].BurstCount {
				return models.LeakageCheck{
					CheckName: CheckCausalFeatureRecompute,
					Status:    models.CheckFail,
					Detail: fmt.Sprintf("split %s alert %d: burst_count %d, isolated recompute %d",
						s, records[i].ID, records[i].BurstCount, v.BurstCount),
				}, nil
			}
			if !floatPtrEqual(v.InterArrivalSeconds, records[i].InterArrivalSeconds) {
				return models.LeakageCheck{
					CheckName: CheckCausalFeatureRecompute,
					Status:    models.CheckFail,
					Detail: fmt.Sprintf("split %s alert %d: inter_arrival_seconds diverges from isolated recompute",
						s, records[i].ID),
				}, nil
			}
		}
	}
	return models.LeakageCheck{
		CheckName: CheckCausalFeatureRecompute,
		Status:    models.CheckPass,
		Detail:    "per-split recompute matches exported features",
	}, nil
}

// checkDistributionBounds flags suspicious null rates and label shares.
// Advisory only: drift is worth a look, not an abort.
func checkDistributionBounds(in Input, cfg Config) models.LeakageCheck {
	var warnings []string

	cols := make([]string, 0, len(in.NullRates))
	for col := range in.NullRates {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if cfg.MaxNullRate > 0 && in.NullRates[col] > cfg.MaxNullRate {
			warnings = append(warnings, fmt.Sprintf("column %s null rate %.3f exceeds %.3f", col, in.NullRates[col], cfg.MaxNullRate))
		}
	}

	var total int64
	counts := make(map[int8]int64, 3)
	for _, s := range models.Splits {
		for _, rec := range in.Records[s] {
			counts[rec.Label]++
			total++
		}
	}
	if total > 0 {
		for _, label := range []int8{labels.FalsePositive, labels.BenignPositive, labels.TruePositive} {
			share := float64(counts[label]) / float64(total)
			if cfg.MinLabelShare > 0 && share < cfg.MinLabelShare {
				warnings = append(warnings, fmt.Sprintf("label %s share %.3f below %.3f", labels.Name(label), share, cfg.MinLabelShare))
			}
			if cfg.MaxLabelShare > 0 && share > cfg.MaxLabelShare {
				warnings = append(warnings, fmt.Sprintf("label %s share %.3f above %.3f", labels.Name(label), share, cfg.MaxLabelShare))
			}
		}
	}

	if len(warnings) > 0 {
		detail := warnings[0]
		for _, w := range warnings[1:] {
			detail += "; " + w
		}
		return models.LeakageCheck{CheckName: CheckDistributionBounds, Status: models.CheckWarn, Detail: detail}
	}
	return models.LeakageCheck{CheckName: CheckDistributionBounds, Status: models.CheckPass, Detail: "null rates and label shares within bounds"}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
