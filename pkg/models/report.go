package models

// ManifestColumn describes one exported column: its name, semantic type and
// the identifier of the formula that derived it ("raw" for passthrough).
type ManifestColumn struct {
	Name         string `json:"name"`
	SemanticType string `json:"semantic_type"`
	Derivation   string `json:"derivation"`
}

// FeatureManifest is the ordered column list written next to the split files.
type FeatureManifest struct {
	Columns []ManifestColumn `json:"columns"`
	Labels  map[string]int   `json:"labels"`
}

// SplitStatistics summarizes one exported split.
type SplitStatistics struct {
	Rows          int64           `json:"rows"`
	Incidents     int64           `json:"incidents"`
	LabelCounts   map[string]int64 `json:"label_counts"`
	EarliestAlert string          `json:"earliest_alert,omitempty"`
	LatestAlert   string          `json:"latest_alert,omitempty"`
}

// DatasetStatistics is the dataset_statistics.json document. It is written
// once per run and never mutated; identical input and configuration must
// yield byte-identical content apart from RunID.
type DatasetStatistics struct {
	RunID         string                     `json:"run_id"`
	InputRows     int64                      `json:"input_rows"`
	RejectedRows  map[string]int64           `json:"rejected_rows"`
	UnlabeledRows int64                      `json:"unlabeled_rows"`
	Splits        map[string]SplitStatistics `json:"splits"`
	NullRates     map[string]float64         `json:"null_rates"`
}

// Leakage check outcomes.
const (
	CheckPass = "pass"
	CheckFail = "fail"
	CheckWarn = "warn"
)

// LeakageCheck records the outcome of one verifier check.
type LeakageCheck struct {
	CheckName string `json:"check_name"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

// LeakageReport is the leakage_report.json document.
type LeakageReport struct {
	RunID  string         `json:"run_id"`
	Checks []LeakageCheck `json:"checks"`
}

// Failed reports whether any check has status fail.
func (r *LeakageReport) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == CheckFail {
			return true
		}
	}
	return false
}
