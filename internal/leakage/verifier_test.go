package leakage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"triagepipe/internal/features"
	"triagepipe/internal/split"
	"triagepipe/pkg/models"
)

func buildSplit(t *testing.T, base time.Time, incidentID int64, n int, label int8) ([]*models.Alert, []*models.FeatureRecord) {
	t.Helper()
	var alerts []*models.Alert
	for i := 0; i < n; i++ {
		alerts = append(alerts, &models.Alert{
			ID:              incidentID*100 + int64(i),
			AlertID:         incidentID*100 + int64(i),
			OrgID:           1,
			IncidentID:      incidentID,
			AccountObjectID: 500,
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
		})
	}
	vs, err := features.ComputeVelocity(context.Background(), alerts, 1)
	if err != nil {
		t.Fatalf("compute velocity: %v", err)
	}
	var records []*models.FeatureRecord
	for i, a := range alerts {
		records = append(records, &models.FeatureRecord{
			ID:                  a.ID,
			OrgID:               a.OrgID,
			IncidentID:          a.IncidentID,
			AlertID:             a.AlertID,
			Timestamp:           a.Timestamp,
			BurstCount:          vs[i].BurstCount,
			InterArrivalSeconds: vs[i].InterArrivalSeconds,
			Label:               label,
		})
	}
	return alerts, records
}

func cleanInput(t *testing.T) Input {
	t.Helper()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	in := Input{
		Records: make(map[models.Split][]*models.FeatureRecord),
		Alerts:  make(map[models.Split][]*models.Alert),
	}
	a1, r1 := buildSplit(t, base, 1, 3, 0)
	a2, r2 := buildSplit(t, base.Add(24*time.Hour), 2, 3, 1)
	a3, r3 := buildSplit(t, base.Add(48*time.Hour), 3, 3, 2)
	in.Alerts[models.SplitTrain], in.Records[models.SplitTrain] = a1, r1
	in.Alerts[models.SplitValidation], in.Records[models.SplitValidation] = a2, r2
	in.Alerts[models.SplitTest], in.Records[models.SplitTest] = a3, r3
	return in
}

func defaultCfg() Config {
	return Config{Policy: split.PolicyTemporal, Workers: 1}
}

func TestVerifyPassesOnCleanInput(t *testing.T) {
	report, err := Verify(context.Background(), cleanInput(t), defaultCfg())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected all checks to pass: %+v", report.Checks)
	}
	if len(report.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(report.Checks))
	}
}

func TestIncidentInTwoSplitsIsFatal(t *testing.T) {
	in := cleanInput(t)
	// Move one test record's incident id into a train incident.
	in.Records[models.SplitTest][0].IncidentID = 1

	report, err := Verify(context.Background(), in, defaultCfg())
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *leakage.Error, got %v", err)
	}
	if lerr.Check != CheckIncidentDisjointness {
		t.Fatalf("unexpected failing check: %s", lerr.Check)
	}
	if report == nil || !report.Failed() {
		t.Fatalf("report should still be produced and mark the failure")
	}
}

func TestTrainAfterHoldoutIsFatal(t *testing.T) {
	in := cleanInput(t)
	late := in.Records[models.SplitTest][0].Timestamp.Add(time.Hour)
	in.Records[models.SplitTrain][0].Timestamp = late
	in.Alerts[models.SplitTrain][0].Timestamp = late

	_, err := Verify(context.Background(), in, defaultCfg())
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *leakage.Error, got %v", err)
	}
	if lerr.Check != CheckTemporalCutoffOrder {
		t.Fatalf("unexpected failing check: %s", lerr.Check)
	}
}

func TestCutoffOrderSkippedForStratified(t *testing.T) {
	in := cleanInput(t)
	late := in.Records[models.SplitTest][0].Timestamp.Add(time.Hour)
	in.Records[models.SplitTrain][0].Timestamp = late
	in.Alerts[models.SplitTrain][0].Timestamp = late
	rebuildFeatures(t, in, models.SplitTrain)

	cfg := defaultCfg()
	cfg.Policy = split.PolicyStratified
	if _, err := Verify(context.Background(), in, cfg); err != nil {
		t.Fatalf("cutoff ordering should not apply to stratified splits: %v", err)
	}
}

// rebuildFeatures recomputes one split's causal columns after a fixture
// mutates its alerts, so only the mutation under test diverges.
func rebuildFeatures(t *testing.T, in Input, s models.Split) {
	t.Helper()
	vs, err := features.ComputeVelocity(context.Background(), in.Alerts[s], 1)
	if err != nil {
		t.Fatalf("recompute velocity: %v", err)
	}
	for i, rec := range in.Records[s] {
		rec.Timestamp = in.Alerts[s][i].Timestamp
		rec.BurstCount = vs[i].BurstCount
		rec.InterArrivalSeconds = vs[i].InterArrivalSeconds
	}
}

func TestRecomputeMismatchIsFatalByDefault(t *testing.T) {
	in := cleanInput(t)
	// A burst count the isolated recompute cannot reproduce, as if the
	// feature pass had counted rows from another split.
	in.Records[models.SplitTrain][0].BurstCount = 99

	_, err := Verify(context.Background(), in, defaultCfg())
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *leakage.Error, got %v", err)
	}
	if lerr.Check != CheckCausalFeatureRecompute {
		t.Fatalf("unexpected failing check: %s", lerr.Check)
	}
}

func TestRecomputeMismatchWarnsInRelaxedMode(t *testing.T) {
	in := cleanInput(t)
	in.Records[models.SplitTrain][0].BurstCount = 99

	cfg := defaultCfg()
	cfg.Relaxed = true
	report, err := Verify(context.Background(), in, cfg)
	if err != nil {
		t.Fatalf("relaxed mode should not abort: %v", err)
	}
	found := false
	for _, c := range report.Checks {
		if c.CheckName == CheckCausalFeatureRecompute {
			found = true
			if c.Status != models.CheckFail {
				t.Fatalf("expected check marked fail in report, got %s", c.Status)
			}
		}
	}
	if !found {
		t.Fatalf("recompute check missing from report")
	}
}

func TestDistributionBoundsWarnOnly(t *testing.T) {
	in := cleanInput(t)
	cfg := defaultCfg()
	cfg.MaxNullRate = 0.1
	in.NullRates = map[string]float64{"EntityType": 0.9}

	report, err := Verify(context.Background(), in, cfg)
	if err != nil {
		t.Fatalf("distribution drift must not abort: %v", err)
	}
	for _, c := range report.Checks {
		if c.CheckName == CheckDistributionBounds {
			if c.Status != models.CheckWarn {
				t.Fatalf("expected warn, got %s", c.Status)
			}
			if !strings.Contains(c.Detail, "EntityType") {
				t.Fatalf("warning should name the column: %s", c.Detail)
			}
			return
		}
	}
	t.Fatalf("distribution check missing from report")
}
