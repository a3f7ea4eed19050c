package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"triagepipe/internal/export/featurejson"
	"triagepipe/internal/features"
	"triagepipe/internal/featurestate"
	"triagepipe/internal/input/rawjson"
	inputredis "triagepipe/internal/input/redis"
	"triagepipe/internal/labels"
	"triagepipe/internal/logger"
	"triagepipe/internal/metrics"
	"triagepipe/internal/schema"
	"triagepipe/pkg/models"
)

// StreamConfig controls the streaming enricher.
type StreamConfig struct {
	Temporal    features.TemporalConfig
	Criticality features.CriticalityConfig
	// OutputKey, when set, pushes enriched records onto this Redis list.
	OutputKey string
}

// Enricher applies the batch pipeline's derivations to one incoming alert
// at a time, folding against running state persisted in Redis. This is the
// serving-side invocation mode: same update rule as the batch fold.
type Enricher struct {
	consumer     *inputredis.Consumer
	store        *featurestate.RedisStore
	fileWriter   *featurejson.Writer
	normalizer   *schema.Normalizer
	standardizer *labels.Standardizer
	cfg          StreamConfig
}

// NewEnricher creates the streaming enricher. fileWriter may be nil when
// OutputKey is the only sink.
func NewEnricher(consumer *inputredis.Consumer, store *featurestate.RedisStore, fileWriter *featurejson.Writer, cfg StreamConfig) *Enricher {
	return &Enricher{
		consumer:     consumer,
		store:        store,
		fileWriter:   fileWriter,
		normalizer:   schema.NewNormalizer(),
		standardizer: labels.NewStandardizer(),
		cfg:          cfg,
	}
}

// Run consumes raw alerts until the context is canceled.
func (e *Enricher) Run(ctx context.Context) error {
	logger.Infof("Streaming enricher started")
	for {
		payload, err := e.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("Failed to pop raw alert: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if payload == nil {
			continue
		}

		rec, err := e.EnrichOne(ctx, payload)
		if err != nil {
			logger.Warnf("Failed to enrich alert: %v", err)
			continue
		}
		if err := e.emit(ctx, rec); err != nil {
			logger.Errorf("Failed to emit feature record: %v", err)
			continue
		}
		metrics.StreamRecords.Inc()
	}
}

// EnrichOne derives the feature record for a single raw alert payload.
// Incoming alerts usually carry no triage grade yet; those records get
// label -1, matching the batch audit bucket.
func (e *Enricher) EnrichOne(ctx context.Context, payload []byte) (*models.FeatureRecord, error) {
	raw, err := rawjson.Parse(payload)
	if err != nil {
		return nil, err
	}
	alert, err := e.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	label := int8(-1)
	if alert.IncidentGrade != "" {
		if l, err := e.standardizer.Standardize(alert.IncidentGrade); err == nil {
			label = l
		} else {
			logger.Warnf("Unknown triage grade on stream: %v", err)
		}
	}

	burst, err := e.store.NextBurst(ctx, alert.OrgID, alert.HourBucket())
	if err != nil {
		return nil, err
	}
	gap, err := e.store.NextArrival(ctx, alert.AccountObjectID, alert.Timestamp)
	if err != nil {
		return nil, err
	}

	temporal := features.Temporal(alert.Timestamp, e.cfg.Temporal)
	return &models.FeatureRecord{
		ID:                  alert.ID,
		OrgID:               alert.OrgID,
		IncidentID:          alert.IncidentID,
		AlertID:             alert.AlertID,
		AccountObjectID:     alert.AccountObjectID,
		Timestamp:           alert.Timestamp,
		DetectorID:          alert.DetectorID,
		Category:            alert.Category,
		EntityType:          alert.EntityType,
		HourOfDay:           temporal.HourOfDay,
		DayOfWeek:           temporal.DayOfWeek,
		IsNight:             temporal.IsNight,
		BurstCount:          burst,
		InterArrivalSeconds: gap,
		AssetCriticality:    features.Criticality(alert.EntityType, e.cfg.Criticality),
		Label:               label,
	}, nil
}

func (e *Enricher) emit(ctx context.Context, rec *models.FeatureRecord) error {
	if e.cfg.OutputKey != "" {
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := e.consumer.Push(ctx, e.cfg.OutputKey, payload); err != nil {
			return err
		}
	}
	if e.fileWriter != nil {
		return e.fileWriter.WriteRecord(rec)
	}
	return nil
}

// Close releases enricher resources.
func (e *Enricher) Close() error {
	if e.fileWriter != nil {
		if err := e.fileWriter.Close(); err != nil {
			logger.Errorf("Failed to close feature writer: %v", err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logger.Errorf("Failed to close feature-state store: %v", err)
		}
	}
	if e.consumer != nil {
		return e.consumer.Close()
	}
	return nil
}
