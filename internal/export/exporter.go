// Package export publishes the finished dataset: one Parquet file per
// split plus the feature manifest and the statistics/leakage reports.
// Everything is staged in a hidden directory and renamed into place only
// when complete, so a failed run never leaves partial files where a
// consumer could read them.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"triagepipe/internal/export/parquetout"
	"triagepipe/internal/labels"
	"triagepipe/internal/logger"
	"triagepipe/pkg/models"
)

// Report file names.
const (
	ManifestFile   = "feature_manifest.json"
	StatisticsFile = "dataset_statistics.json"
	LeakageFile    = "leakage_report.json"
	UnlabeledFile  = "unlabeled.parquet"
)

// Artifacts is everything one run publishes.
type Artifacts struct {
	Records    map[models.Split][]*models.FeatureRecord
	Unlabeled  []*models.FeatureRecord
	Manifest   models.FeatureManifest
	Statistics models.DatasetStatistics
	Leakage    models.LeakageReport
}

// Exporter writes artifacts under a single output directory.
type Exporter struct {
	dir string
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// SplitFile returns the Parquet file name for a split.
func SplitFile(s models.Split) string {
	return string(s) + ".parquet"
}

// Publish stages all artifacts and renames them into the output directory.
func (e *Exporter) Publish(a *Artifacts) (err error) {
	staging := filepath.Join(e.dir, ".staging-"+a.Statistics.RunID)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	names := make([]string, 0, 8)
	for _, s := range models.Splits {
		name := SplitFile(s)
		if err := parquetout.WriteFile(filepath.Join(staging, name), a.Records[s]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		names = append(names, name)
	}
	if len(a.Unlabeled) > 0 {
		if err := parquetout.WriteFile(filepath.Join(staging, UnlabeledFile), a.Unlabeled); err != nil {
			return fmt.Errorf("write %s: %w", UnlabeledFile, err)
		}
		names = append(names, UnlabeledFile)
	}

	if err := writeJSON(filepath.Join(staging, ManifestFile), a.Manifest); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(staging, StatisticsFile), a.Statistics); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(staging, LeakageFile), a.Leakage); err != nil {
		return err
	}
	// The manifest is renamed last and acts as the commit marker: a dataset
	// without one is not readable. If any rename fails, everything already
	// renamed is pulled back out so no partial dataset stays behind.
	names = append(names, StatisticsFile, LeakageFile, ManifestFile)

	published := make([]string, 0, len(names))
	defer func() {
		if err != nil {
			for _, name := range published {
				os.Remove(filepath.Join(e.dir, name))
			}
		}
	}()
	for _, name := range names {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(e.dir, name)); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		published = append(published, name)
	}
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("remove staging directory: %w", err)
	}

	logger.Infof("Dataset published to %s (%d files)", e.dir, len(names))
	return nil
}

// PublishFailure writes the statistics and leakage reports for an aborted
// run into a "failed" subdirectory. The dataset files are never written.
func (e *Exporter) PublishFailure(stats models.DatasetStatistics, leak models.LeakageReport) error {
	dir := filepath.Join(e.dir, "failed")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create failure directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, StatisticsFile), stats); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, LeakageFile), leak); err != nil {
		return err
	}
	logger.Warnf("Run failed; reports written to %s", dir)
	return nil
}

// BuildManifest returns the exported column list in file order, with the
// derivation identifier for each engineered column.
func BuildManifest() models.FeatureManifest {
	return models.FeatureManifest{
		Columns: []models.ManifestColumn{
			{Name: "id", SemanticType: "identifier", Derivation: "raw"},
			{Name: "org_id", SemanticType: "identifier", Derivation: "raw"},
			{Name: "incident_id", SemanticType: "identifier", Derivation: "raw"},
			{Name: "alert_id", SemanticType: "identifier", Derivation: "raw"},
			{Name: "account_object_id", SemanticType: "identifier", Derivation: "raw"},
			{Name: "timestamp_ms", SemanticType: "timestamp", Derivation: "epoch_millis"},
			{Name: "detector_id", SemanticType: "identifier", Derivation: "raw"},
			{Name: "category", SemanticType: "categorical", Derivation: "raw"},
			{Name: "entity_type", SemanticType: "categorical", Derivation: "raw"},
			{Name: "hour_of_day", SemanticType: "numeric", Derivation: "timestamp_hour_utc"},
			{Name: "day_of_week", SemanticType: "numeric", Derivation: "timestamp_weekday_monday0"},
			{Name: "is_night", SemanticType: "boolean", Derivation: "night_boundary_flag"},
			{Name: "burst_count", SemanticType: "numeric", Derivation: "causal_org_hour_running_count"},
			{Name: "inter_arrival_seconds", SemanticType: "numeric", Derivation: "causal_account_arrival_gap"},
			{Name: "asset_criticality", SemanticType: "ordinal", Derivation: "entity_type_tier_table"},
			{Name: "label", SemanticType: "label", Derivation: "triage_grade_ordinal"},
			{Name: "mitre_techniques", SemanticType: "text", Derivation: "excluded_high_cardinality"},
		},
		Labels: labels.Map(),
	}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
