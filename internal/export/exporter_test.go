package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"triagepipe/internal/export/parquetout"
	"triagepipe/pkg/models"
)

func sampleArtifacts() *Artifacts {
	gap := 300.0
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	rec := func(id int64, split models.Split) *models.FeatureRecord {
		return &models.FeatureRecord{
			ID:                  id,
			OrgID:               1,
			IncidentID:          id,
			AlertID:             id,
			Timestamp:           base.Add(time.Duration(id) * time.Hour),
			Category:            "InitialAccess",
			EntityType:          "Machine",
			HourOfDay:           9,
			BurstCount:          1,
			InterArrivalSeconds: &gap,
			AssetCriticality:    3,
			Label:               2,
		}
	}
	return &Artifacts{
		Records: map[models.Split][]*models.FeatureRecord{
			models.SplitTrain:      {rec(1, models.SplitTrain), rec(2, models.SplitTrain)},
			models.SplitValidation: {rec(3, models.SplitValidation)},
			models.SplitTest:       {rec(4, models.SplitTest)},
		},
		Unlabeled:  []*models.FeatureRecord{rec(5, models.SplitTrain)},
		Manifest:   BuildManifest(),
		Statistics: models.DatasetStatistics{RunID: "run-1", InputRows: 5},
		Leakage: models.LeakageReport{RunID: "run-1", Checks: []models.LeakageCheck{
			{CheckName: "incident_disjointness", Status: models.CheckPass, Detail: "ok"},
		}},
	}
}

func TestPublishWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir)
	if err := e.Publish(sampleArtifacts()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, name := range []string{"train.parquet", "validation.parquet", "test.parquet",
		UnlabeledFile, ManifestFile, StatisticsFile, LeakageFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			t.Fatalf("staging directory left behind: %s", ent.Name())
		}
	}

	rows, err := parquetout.ReadFile(filepath.Join(dir, "train.parquet"))
	if err != nil {
		t.Fatalf("read train parquet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 train rows, got %d", len(rows))
	}
	if rows[0].InterArrivalSeconds == nil || *rows[0].InterArrivalSeconds != 300.0 {
		t.Fatalf("inter_arrival_seconds did not round-trip: %v", rows[0].InterArrivalSeconds)
	}
}

// A rename failure partway through publishing must pull back the files
// already renamed; consumers never see a dataset without its manifest.
func TestPublishRollsBackOnRenameFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on the validation file name makes its rename
	// fail after train.parquet has already been published.
	if err := os.Mkdir(filepath.Join(dir, "validation.parquet"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	e := NewExporter(dir)
	if err := e.Publish(sampleArtifacts()); err == nil {
		t.Fatalf("expected publish to fail")
	}

	if _, err := os.Stat(filepath.Join(dir, "train.parquet")); !os.IsNotExist(err) {
		t.Fatalf("train.parquet must be rolled back after a failed publish")
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); !os.IsNotExist(err) {
		t.Fatalf("manifest must not exist after a failed publish")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, ent := range entries {
		if ent.Name() != "validation.parquet" {
			t.Fatalf("unexpected leftover after failed publish: %s", ent.Name())
		}
	}
}

func TestStatisticsAreByteDeterministic(t *testing.T) {
	stats := models.DatasetStatistics{
		RunID:        "fixed",
		InputRows:    10,
		RejectedRows: map[string]int64{"schema": 1, "label": 2},
		NullRates:    map[string]float64{"EntityType": 0.25, "CountryCode": 0.5},
		Splits: map[string]models.SplitStatistics{
			"train": {Rows: 5, LabelCounts: map[string]int64{"TruePositive": 3, "FalsePositive": 2}},
		},
	}

	render := func() []byte {
		path := filepath.Join(t.TempDir(), "stats.json")
		if err := writeJSON(path, stats); err != nil {
			t.Fatalf("write: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return data
	}

	first := render()
	second := render()
	if string(first) != string(second) {
		t.Fatalf("statistics serialization is not deterministic")
	}
}

func TestPublishFailureWritesOnlyReports(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir)
	err := e.PublishFailure(
		models.DatasetStatistics{RunID: "run-2"},
		models.LeakageReport{RunID: "run-2", Checks: []models.LeakageCheck{
			{CheckName: "incident_disjointness", Status: models.CheckFail, Detail: "incident 7 in two splits"},
		}},
	)
	if err != nil {
		t.Fatalf("publish failure: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "failed", LeakageFile)); err != nil {
		t.Fatalf("missing failure leakage report: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "train.parquet")); !os.IsNotExist(err) {
		t.Fatalf("no dataset file may exist after a failed run")
	}

	data, err := os.ReadFile(filepath.Join(dir, "failed", LeakageFile))
	if err != nil {
		t.Fatalf("read failure report: %v", err)
	}
	var report models.LeakageReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal failure report: %v", err)
	}
	if !report.Failed() {
		t.Fatalf("failure report should carry the failed check")
	}
}

func TestManifestListsEngineeredDerivations(t *testing.T) {
	m := BuildManifest()
	derivations := make(map[string]string, len(m.Columns))
	for _, c := range m.Columns {
		derivations[c.Name] = c.Derivation
	}
	if derivations["burst_count"] != "causal_org_hour_running_count" {
		t.Fatalf("unexpected burst derivation: %s", derivations["burst_count"])
	}
	if derivations["inter_arrival_seconds"] != "causal_account_arrival_gap" {
		t.Fatalf("unexpected inter-arrival derivation: %s", derivations["inter_arrival_seconds"])
	}
	if derivations["mitre_techniques"] != "excluded_high_cardinality" {
		t.Fatalf("high-cardinality columns must be flagged as excluded")
	}
	if m.Labels["TruePositive"] != 2 {
		t.Fatalf("unexpected label map: %+v", m.Labels)
	}
}
