// Package pipeline orchestrates the runs: the batch job that builds the
// partitioned dataset, and the streaming enricher that applies the same
// derivations to one alert at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"triagepipe/internal/export"
	"triagepipe/internal/features"
	"triagepipe/internal/labels"
	"triagepipe/internal/leakage"
	"triagepipe/internal/logger"
	"triagepipe/internal/metrics"
	"triagepipe/internal/schema"
	"triagepipe/internal/split"
	"triagepipe/pkg/models"
)

// BatchConfig controls one batch run.
type BatchConfig struct {
	Workers     int
	Temporal    features.TemporalConfig
	Criticality features.CriticalityConfig
	Split       split.Config
	Leakage     leakage.Config
}

// Batch builds the partitioned, leakage-verified dataset from raw records.
type Batch struct {
	cfg          BatchConfig
	standardizer *labels.Standardizer
	exporter     *export.Exporter
}

// NewBatch creates the batch pipeline.
func NewBatch(cfg BatchConfig, exporter *export.Exporter) *Batch {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Batch{
		cfg:          cfg,
		standardizer: labels.NewStandardizer(),
		exporter:     exporter,
	}
}

// labeledAlert pairs a normalized alert with its standardized label.
type labeledAlert struct {
	alert *models.Alert
	label int8
}

// Run executes one batch: normalize, label, partition, derive features per
// split in isolation, verify leakage, publish. Row-level errors are
// accumulated; run-level errors abort before any dataset file is written,
// though the reports are still emitted.
func (b *Batch) Run(ctx context.Context, raws []models.RawRecord) (*export.Artifacts, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger.Infof("Batch run %s started: %d raw rows", runID, len(raws))

	normalizer := schema.NewNormalizer()
	rowErrs := NewRowErrors()

	labeled := make([]labeledAlert, 0, len(raws))
	var unlabeled []*models.Alert
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		metrics.RowsRead.Inc()

		alert, err := normalizer.Normalize(raw)
		if err != nil {
			var serr *schema.Error
			if errors.As(err, &serr) {
				rowErrs.Add(ReasonSchema, err)
				metrics.RowsRejected.WithLabelValues(ReasonSchema).Inc()
				continue
			}
			return nil, err
		}

		label, err := b.standardizer.Standardize(alert.IncidentGrade)
		if err != nil {
			if errors.Is(err, labels.ErrUnlabeled) {
				unlabeled = append(unlabeled, alert)
				continue
			}
			rowErrs.Add(ReasonLabel, err)
			metrics.RowsRejected.WithLabelValues(ReasonLabel).Inc()
			continue
		}
		labeled = append(labeled, labeledAlert{alert: alert, label: label})
	}
	rowErrs.LogSummary()

	alerts := make([]*models.Alert, len(labeled))
	for i, la := range labeled {
		alerts[i] = la.alert
	}

	partitioner, err := split.NewPartitioner(b.cfg.Split)
	if err != nil {
		return nil, err
	}
	assignment, err := partitioner.Assign(alerts)
	if err != nil {
		b.publishFailure(runID, normalizer, rowErrs, len(raws), int64(len(unlabeled)), nil)
		return nil, err
	}

	// Labels travel with their alert. Record ids are not unique (a null
	// Id column coerces to the unknown sentinel), so a label lookup keyed
	// by id would collide.
	splitPairs := make(map[models.Split][]labeledAlert, len(models.Splits))
	for _, la := range labeled {
		s := assignment[la.alert.IncidentID]
		splitPairs[s] = append(splitPairs[s], la)
	}
	splitAlerts := make(map[models.Split][]*models.Alert, len(models.Splits))
	for _, s := range models.Splits {
		sortLabeled(splitPairs[s])
		sa := make([]*models.Alert, len(splitPairs[s]))
		for i, la := range splitPairs[s] {
			sa[i] = la.alert
		}
		splitAlerts[s] = sa
	}

	// Each split is enriched against its own rows only; the feature state
	// never crosses a split boundary.
	records := make(map[models.Split][]*models.FeatureRecord, len(models.Splits))
	for _, s := range models.Splits {
		recs, err := b.enrich(ctx, splitAlerts[s], splitPairs[s])
		if err != nil {
			return nil, err
		}
		records[s] = recs
	}

	sortAlerts(unlabeled)
	unlabeledRecords, err := b.enrichUnlabeled(ctx, unlabeled)
	if err != nil {
		return nil, err
	}

	stats := b.buildStatistics(runID, normalizer, rowErrs, int64(len(raws)), int64(len(unlabeled)), records)

	leakCfg := b.cfg.Leakage
	leakCfg.Policy = b.cfg.Split.Policy
	leakCfg.Workers = b.cfg.Workers
	report, err := leakage.Verify(ctx, leakage.Input{
		Records:   records,
		Alerts:    splitAlerts,
		NullRates: stats.NullRates,
	}, leakCfg)
	if report != nil {
		report.RunID = runID
		for _, c := range report.Checks {
			metrics.LeakageChecks.WithLabelValues(c.CheckName, c.Status).Inc()
		}
	}
	if err != nil {
		b.publishFailure(runID, normalizer, rowErrs, len(raws), int64(len(unlabeled)), report)
		return nil, err
	}

	artifacts := &export.Artifacts{
		Records:    records,
		Unlabeled:  unlabeledRecords,
		Manifest:   export.BuildManifest(),
		Statistics: stats,
		Leakage:    *report,
	}
	if err := b.exporter.Publish(artifacts); err != nil {
		return nil, fmt.Errorf("publish artifacts: %w", err)
	}

	for _, s := range models.Splits {
		metrics.SplitRows.WithLabelValues(string(s)).Set(float64(len(records[s])))
	}
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	logger.Infof("Batch run %s finished in %s", runID, time.Since(started).Round(time.Millisecond))
	return artifacts, nil
}

// enrich derives all feature columns for one split. alerts and pairs are
// positionally aligned: alerts[i] is pairs[i].alert.
func (b *Batch) enrich(ctx context.Context, alerts []*models.Alert, pairs []labeledAlert) ([]*models.FeatureRecord, error) {
	velocities, err := features.ComputeVelocity(ctx, alerts, b.cfg.Workers)
	if err != nil {
		return nil, err
	}

	records := make([]*models.FeatureRecord, len(alerts))
	for i, a := range alerts {
		records[i] = b.record(a, velocities[i], pairs[i].label)
	}
	return records, nil
}

// enrichUnlabeled derives features for the audit bucket. The rows carry
// label -1 and are never part of a split.
func (b *Batch) enrichUnlabeled(ctx context.Context, alerts []*models.Alert) ([]*models.FeatureRecord, error) {
	if len(alerts) == 0 {
		return nil, nil
	}
	velocities, err := features.ComputeVelocity(ctx, alerts, b.cfg.Workers)
	if err != nil {
		return nil, err
	}
	records := make([]*models.FeatureRecord, len(alerts))
	for i, a := range alerts {
		records[i] = b.record(a, velocities[i], -1)
	}
	return records, nil
}

func (b *Batch) record(a *models.Alert, v features.Velocity, label int8) *models.FeatureRecord {
	temporal := features.Temporal(a.Timestamp, b.cfg.Temporal)
	return &models.FeatureRecord{
		ID:                  a.ID,
		OrgID:               a.OrgID,
		IncidentID:          a.IncidentID,
		AlertID:             a.AlertID,
		AccountObjectID:     a.AccountObjectID,
		Timestamp:           a.Timestamp,
		DetectorID:          a.DetectorID,
		Category:            a.Category,
		EntityType:          a.EntityType,
		HourOfDay:           temporal.HourOfDay,
		DayOfWeek:           temporal.DayOfWeek,
		IsNight:             temporal.IsNight,
		BurstCount:          v.BurstCount,
		InterArrivalSeconds: v.InterArrivalSeconds,
		AssetCriticality:    features.Criticality(a.EntityType, b.cfg.Criticality),
		Label:               label,
	}
}

func (b *Batch) buildStatistics(runID string, normalizer *schema.Normalizer, rowErrs *RowErrors, inputRows, unlabeledRows int64, records map[models.Split][]*models.FeatureRecord) models.DatasetStatistics {
	nullRates := normalizer.NullRates()

	var total, nullArrivals int64
	splitStats := make(map[string]models.SplitStatistics, len(models.Splits))
	for _, s := range models.Splits {
		recs := records[s]
		incidents := make(map[int64]struct{}, 128)
		labelCounts := make(map[string]int64, 3)
		var earliest, latest time.Time
		for _, rec := range recs {
			incidents[rec.IncidentID] = struct{}{}
			labelCounts[labels.Name(rec.Label)]++
			if earliest.IsZero() || rec.Timestamp.Before(earliest) {
				earliest = rec.Timestamp
			}
			if rec.Timestamp.After(latest) {
				latest = rec.Timestamp
			}
			if rec.InterArrivalSeconds == nil {
				nullArrivals++
			}
			total++
		}
		st := models.SplitStatistics{
			Rows:        int64(len(recs)),
			Incidents:   int64(len(incidents)),
			LabelCounts: labelCounts,
		}
		if !earliest.IsZero() {
			st.EarliestAlert = earliest.Format(time.RFC3339)
			st.LatestAlert = latest.Format(time.RFC3339)
		}
		splitStats[string(s)] = st
	}
	if total > 0 {
		nullRates["inter_arrival_seconds"] = float64(nullArrivals) / float64(total)
	}

	return models.DatasetStatistics{
		RunID:         runID,
		InputRows:     inputRows,
		RejectedRows:  rowErrs.Counts(),
		UnlabeledRows: unlabeledRows,
		Splits:        splitStats,
		NullRates:     nullRates,
	}
}

// publishFailure emits the reports for an aborted run. The dataset files
// themselves are never written on failure.
func (b *Batch) publishFailure(runID string, normalizer *schema.Normalizer, rowErrs *RowErrors, inputRows int, unlabeledRows int64, report *models.LeakageReport) {
	stats := models.DatasetStatistics{
		RunID:         runID,
		InputRows:     int64(inputRows),
		RejectedRows:  rowErrs.Counts(),
		UnlabeledRows: unlabeledRows,
		NullRates:     normalizer.NullRates(),
	}
	leak := models.LeakageReport{RunID: runID}
	if report != nil {
		leak = *report
	}
	if err := b.exporter.PublishFailure(stats, leak); err != nil {
		logger.Errorf("Failed to write failure reports: %v", err)
	}
}

// sortLabeled orders alert/label pairs the same way sortAlerts orders
// alerts, keeping both slices of a split positionally aligned.
func sortLabeled(pairs []labeledAlert) {
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i].alert, pairs[j].alert
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.AlertID != b.AlertID {
			return a.AlertID < b.AlertID
		}
		return a.ID < b.ID
	})
}

// sortAlerts orders alerts by (timestamp, alert id, id) so downstream
// feature and record slices stay positionally aligned and deterministic.
func sortAlerts(alerts []*models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.AlertID != b.AlertID {
			return a.AlertID < b.AlertID
		}
		return a.ID < b.ID
	})
}
