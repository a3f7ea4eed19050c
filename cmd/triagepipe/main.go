package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"triagepipe/config"
	"triagepipe/internal/export"
	"triagepipe/internal/export/featureclickhouse"
	"triagepipe/internal/export/featurejson"
	"triagepipe/internal/export/parquetout"
	"triagepipe/internal/features"
	"triagepipe/internal/featurestate"
	"triagepipe/internal/generate"
	"triagepipe/internal/input/rawcsv"
	inputredis "triagepipe/internal/input/redis"
	"triagepipe/internal/leakage"
	"triagepipe/internal/logger"
	"triagepipe/internal/metrics"
	"triagepipe/internal/pipeline"
	"triagepipe/internal/split"
	"triagepipe/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("triagepipe.yml"); err == nil {
		return "triagepipe.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "triagepipe.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "triagepipe.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.TriagePipe.Input.CSV.Path == "" {
		cfg.TriagePipe.Input.CSV.Path = "data/alerts.csv"
	}
	if cfg.TriagePipe.Input.Redis.Addr == "" {
		cfg.TriagePipe.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.TriagePipe.Input.Redis.Key == "" {
		cfg.TriagePipe.Input.Redis.Key = "raw_alerts"
	}
	if cfg.TriagePipe.Input.Redis.BlockTimeout == 0 {
		cfg.TriagePipe.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.TriagePipe.Features.NightStartHour == 0 && cfg.TriagePipe.Features.NightEndHour == 0 {
		cfg.TriagePipe.Features.NightStartHour = 22
		cfg.TriagePipe.Features.NightEndHour = 6
	}
	if cfg.TriagePipe.Features.DefaultTier == 0 {
		cfg.TriagePipe.Features.DefaultTier = features.TierStandard
	}

	if cfg.TriagePipe.Split.Policy == "" {
		cfg.TriagePipe.Split.Policy = split.PolicyTemporal
	}
	if cfg.TriagePipe.Split.TrainFraction == 0 {
		cfg.TriagePipe.Split.TrainFraction = 0.7
	}
	if cfg.TriagePipe.Split.ValidationFraction == 0 {
		cfg.TriagePipe.Split.ValidationFraction = 0.15
	}

	if cfg.TriagePipe.Leakage.MaxNullRate == 0 {
		cfg.TriagePipe.Leakage.MaxNullRate = 0.6
	}
	if cfg.TriagePipe.Leakage.MaxLabelShare == 0 {
		cfg.TriagePipe.Leakage.MaxLabelShare = 0.9
	}

	if cfg.TriagePipe.Output.Mode == "" {
		cfg.TriagePipe.Output.Mode = "file"
	}
	if cfg.TriagePipe.Output.Dir == "" {
		cfg.TriagePipe.Output.Dir = "output/dataset"
	}
	if cfg.TriagePipe.Output.ClickHouse.Database == "" {
		cfg.TriagePipe.Output.ClickHouse.Database = "triagepipe"
	}
	if cfg.TriagePipe.Output.ClickHouse.Table == "" {
		cfg.TriagePipe.Output.ClickHouse.Table = "feature_records"
	}

	if cfg.TriagePipe.State.Redis.Addr == "" {
		cfg.TriagePipe.State.Redis.Addr = cfg.TriagePipe.Input.Redis.Addr
	}
	if cfg.TriagePipe.State.BucketTTL == 0 {
		cfg.TriagePipe.State.BucketTTL = 2 * time.Hour
	}

	if cfg.TriagePipe.Pipeline.Workers <= 0 {
		cfg.TriagePipe.Pipeline.Workers = 8
	}
	if cfg.TriagePipe.Pipeline.Timeout <= 0 {
		cfg.TriagePipe.Pipeline.Timeout = time.Hour
	}

	if cfg.TriagePipe.Metrics.Addr == "" {
		cfg.TriagePipe.Metrics.Addr = ":9109"
	}
	if cfg.TriagePipe.Logging.Level == "" {
		cfg.TriagePipe.Logging.Level = "info"
	}
}

func loadConfig(args []string) *config.Config {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = &config.Config{}
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.TriagePipe.Logging.Enabled, cfg.TriagePipe.Logging.Level, cfg.TriagePipe.Logging.File, cfg.TriagePipe.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Infof("Config loaded from: %s", configPath)

	if cfg.TriagePipe.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.TriagePipe.Metrics.Addr); err != nil {
				logger.Errorf("Metrics listener failed: %v", err)
			}
		}()
	}
	return cfg
}

func featureConfigs(cfg *config.Config) (features.TemporalConfig, features.CriticalityConfig) {
	temporal := features.TemporalConfig{
		NightStartHour: cfg.TriagePipe.Features.NightStartHour,
		NightEndHour:   cfg.TriagePipe.Features.NightEndHour,
	}
	criticality := features.DefaultCriticalityConfig()
	if len(cfg.TriagePipe.Features.CriticalityTiers) > 0 {
		criticality = features.CriticalityConfig{
			Tiers:       cfg.TriagePipe.Features.CriticalityTiers,
			DefaultTier: cfg.TriagePipe.Features.DefaultTier,
		}
	}
	return temporal, criticality
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	inputArg := fs.String("input", "", "Raw alert CSV path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(configArgSlice(*configArg))
	inputPath := cfg.TriagePipe.Input.CSV.Path
	if *inputArg != "" {
		inputPath = *inputArg
	}

	reader, err := rawcsv.Open(inputPath)
	if err != nil {
		logger.Errorf("Failed to open input: %v", err)
		return 1
	}
	raws, err := reader.ReadAll()
	reader.Close()
	if err != nil {
		logger.Errorf("Failed to read input: %v", err)
		return 1
	}

	temporal, criticality := featureConfigs(cfg)
	batch := pipeline.NewBatch(pipeline.BatchConfig{
		Workers:     cfg.TriagePipe.Pipeline.Workers,
		Temporal:    temporal,
		Criticality: criticality,
		Split: split.Config{
			Policy:             cfg.TriagePipe.Split.Policy,
			TrainFraction:      cfg.TriagePipe.Split.TrainFraction,
			ValidationFraction: cfg.TriagePipe.Split.ValidationFraction,
			Seed:               cfg.TriagePipe.Split.Seed,
		},
		Leakage: leakage.Config{
			Relaxed:       cfg.TriagePipe.Leakage.Relaxed,
			MaxNullRate:   cfg.TriagePipe.Leakage.MaxNullRate,
			MinLabelShare: cfg.TriagePipe.Leakage.MinLabelShare,
			MaxLabelShare: cfg.TriagePipe.Leakage.MaxLabelShare,
		},
	}, export.NewExporter(cfg.TriagePipe.Output.Dir))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TriagePipe.Pipeline.Timeout)
	defer cancel()

	artifacts, err := batch.Run(ctx, raws)
	if err != nil {
		logger.Errorf("Batch run failed: %v", err)
		return 1
	}

	if cfg.TriagePipe.Output.Mode == "clickhouse" {
		w, err := featureclickhouse.NewWriter(featureclickhouse.Config{
			URL:      cfg.TriagePipe.Output.ClickHouse.URL,
			Database: cfg.TriagePipe.Output.ClickHouse.Database,
			Table:    cfg.TriagePipe.Output.ClickHouse.Table,
			Username: cfg.TriagePipe.Output.ClickHouse.Username,
			Password: cfg.TriagePipe.Output.ClickHouse.Password,
			Timeout:  cfg.TriagePipe.Output.ClickHouse.Timeout,
			Headers:  cfg.TriagePipe.Output.ClickHouse.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create ClickHouse writer: %v", err)
			return 1
		}
		for _, s := range models.Splits {
			if err := w.WriteSplit(s, artifacts.Records[s]); err != nil {
				logger.Errorf("Failed to ship %s rows to ClickHouse: %v", s, err)
				return 1
			}
		}
		w.Close()
	}

	for _, s := range models.Splits {
		st := artifacts.Statistics.Splits[string(s)]
		fmt.Printf("%s: rows=%d incidents=%d\n", s, st.Rows, st.Incidents)
	}
	fmt.Printf("rejected=%d unlabeled=%d output=%s\n",
		artifacts.Statistics.RejectedRows[pipeline.ReasonSchema]+artifacts.Statistics.RejectedRows[pipeline.ReasonLabel],
		artifacts.Statistics.UnlabeledRows,
		cfg.TriagePipe.Output.Dir)
	return 0
}

// runVerify re-runs the leakage checks against an already-published
// dataset directory, using only the exported artifacts.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	dir := fs.String("dir", "output/dataset", "Published dataset directory")
	policy := fs.String("policy", split.PolicyTemporal, "Partition policy the dataset was built with")
	relaxed := fs.Bool("relaxed", false, "Downgrade recompute mismatches to warnings")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	in := leakage.Input{
		Records: make(map[models.Split][]*models.FeatureRecord),
		Alerts:  make(map[models.Split][]*models.Alert),
	}
	for _, s := range models.Splits {
		rows, err := parquetout.ReadFile(filepath.Join(*dir, export.SplitFile(s)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s split: %v\n", s, err)
			return 1
		}
		for _, row := range rows {
			ts := time.UnixMilli(row.TimestampMS).UTC()
			in.Alerts[s] = append(in.Alerts[s], &models.Alert{
				ID:              row.ID,
				OrgID:           row.OrgID,
				IncidentID:      row.IncidentID,
				AlertID:         row.AlertID,
				AccountObjectID: row.AccountObjectID,
				Timestamp:       ts,
			})
			in.Records[s] = append(in.Records[s], &models.FeatureRecord{
				ID:                  row.ID,
				OrgID:               row.OrgID,
				IncidentID:          row.IncidentID,
				AlertID:             row.AlertID,
				AccountObjectID:     row.AccountObjectID,
				Timestamp:           ts,
				BurstCount:          row.BurstCount,
				InterArrivalSeconds: row.InterArrivalSeconds,
				Label:               int8(row.Label),
			})
		}
	}

	report, err := leakage.Verify(context.Background(), in, leakage.Config{
		Relaxed: *relaxed,
		Policy:  *policy,
	})
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
		return 1
	}
	return 0
}

func runStream(args []string) {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	outputFile := fs.String("output", "", "Optional JSONL sink for enriched records")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg := loadConfig(configArgSlice(*configArg))

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         cfg.TriagePipe.Input.Redis.Addr,
		Password:     cfg.TriagePipe.Input.Redis.Password,
		DB:           cfg.TriagePipe.Input.Redis.DB,
		Key:          cfg.TriagePipe.Input.Redis.Key,
		BlockTimeout: cfg.TriagePipe.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	store, err := featurestate.NewRedisStore(featurestate.RedisConfig{
		Addr:      cfg.TriagePipe.State.Redis.Addr,
		Password:  cfg.TriagePipe.State.Redis.Password,
		DB:        cfg.TriagePipe.State.Redis.DB,
		KeyPrefix: cfg.TriagePipe.State.Redis.KeyPrefix,
		BucketTTL: cfg.TriagePipe.State.BucketTTL,
	})
	if err != nil {
		logger.Errorf("Failed to create feature-state store: %v", err)
		log.Fatalf("Failed to create feature-state store: %v", err)
	}

	var fileWriter *featurejson.Writer
	if *outputFile != "" {
		fileWriter, err = featurejson.NewWriter(*outputFile)
		if err != nil {
			logger.Errorf("Failed to create feature file writer: %v", err)
			log.Fatalf("Failed to create feature file writer: %v", err)
		}
	}

	temporal, criticality := featureConfigs(cfg)
	enricher := pipeline.NewEnricher(consumer, store, fileWriter, pipeline.StreamConfig{
		Temporal:    temporal,
		Criticality: criticality,
		OutputKey:   cfg.TriagePipe.Input.Redis.OutputKey,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := enricher.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Enricher error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if err := enricher.Close(); err != nil {
		logger.Errorf("Error closing enricher: %v", err)
	}
	logger.Infof("Streaming enricher stopped")
}

func runGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	output := fs.String("output", "data/alerts.csv", "Output CSV path")
	incidents := fs.Int("incidents", 500, "Number of incidents to generate")
	orgs := fs.Int("orgs", 20, "Number of organizations")
	accounts := fs.Int("accounts", 100, "Number of accounts")
	seed := fs.Int64("seed", 1, "Random seed")
	unlabeledRate := fs.Float64("unlabeled-rate", 0.05, "Fraction of incidents without a grade")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	records := generate.Records(generate.Config{
		Incidents:     *incidents,
		Orgs:          *orgs,
		Accounts:      *accounts,
		Seed:          *seed,
		UnlabeledRate: *unlabeledRate,
	})
	if err := generate.WriteCSV(*output, records); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		return 1
	}
	fmt.Printf("generated rows=%d incidents=%d output=%s\n", len(records), *incidents, *output)
	return 0
}

func configArgSlice(arg string) []string {
	if arg == "" {
		return nil
	}
	return []string{arg}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: triagepipe <build|verify|stream|generate> [flags]\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "build":
		os.Exit(runBuild(os.Args[2:]))
	case "verify":
		os.Exit(runVerify(os.Args[2:]))
	case "stream":
		runStream(os.Args[2:])
	case "generate":
		os.Exit(runGenerate(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}
