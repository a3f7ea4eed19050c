package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	TriagePipe TriagePipeConfig `yaml:"triagepipe"`
}

// TriagePipeConfig is the project configuration.
type TriagePipeConfig struct {
	Input    InputConfig    `yaml:"input"`
	Features FeaturesConfig `yaml:"features"`
	Split    SplitConfig    `yaml:"split"`
	Leakage  LeakageConfig  `yaml:"leakage"`
	Output   OutputConfig   `yaml:"output"`
	State    StateConfig    `yaml:"state"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig controls where raw alerts come from.
type InputConfig struct {
	CSV   CSVInputConfig `yaml:"csv"`
	Redis RedisConfig    `yaml:"redis"`
}

// CSVInputConfig controls the batch CSV reader.
type CSVInputConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig controls Redis access for streaming input and feature state.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	OutputKey    string        `yaml:"output_key"`
	KeyPrefix    string        `yaml:"key_prefix"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// FeaturesConfig controls the derivation formulas.
type FeaturesConfig struct {
	NightStartHour   int            `yaml:"night_start_hour"`
	NightEndHour     int            `yaml:"night_end_hour"`
	CriticalityTiers map[string]int `yaml:"criticality_tiers"`
	DefaultTier      int            `yaml:"default_tier"`
}

// SplitConfig controls incident partitioning.
type SplitConfig struct {
	Policy             string  `yaml:"policy"` // temporal|stratified
	TrainFraction      float64 `yaml:"train_fraction"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	Seed               int64   `yaml:"seed"`
}

// LeakageConfig controls the verifier.
type LeakageConfig struct {
	Relaxed       bool    `yaml:"relaxed"`
	MaxNullRate   float64 `yaml:"max_null_rate"`
	MinLabelShare float64 `yaml:"min_label_share"`
	MaxLabelShare float64 `yaml:"max_label_share"`
}

// OutputConfig controls the exporter.
type OutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|clickhouse
	Dir        string                 `yaml:"dir"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// StateConfig controls the streaming feature-state store.
type StateConfig struct {
	Redis     RedisConfig   `yaml:"redis"`
	BucketTTL time.Duration `yaml:"bucket_ttl"`
}

// PipelineConfig controls batch execution.
type PipelineConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
