// Package parquetout writes one columnar Parquet file per split.
package parquetout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"triagepipe/internal/logger"
	"triagepipe/pkg/models"
)

// Row is the on-disk schema: engineered feature columns, the label and the
// traceability identifiers. Timestamps are stored as epoch milliseconds.
type Row struct {
	ID              int64  `parquet:"id"`
	OrgID           int64  `parquet:"org_id"`
	IncidentID      int64  `parquet:"incident_id"`
	AlertID         int64  `parquet:"alert_id"`
	AccountObjectID int64  `parquet:"account_object_id"`
	TimestampMS     int64  `parquet:"timestamp_ms"`
	DetectorID      int64  `parquet:"detector_id"`
	Category        string `parquet:"category,dict"`
	EntityType      string `parquet:"entity_type,dict"`

	HourOfDay int32 `parquet:"hour_of_day"`
	DayOfWeek int32 `parquet:"day_of_week"`
	IsNight   bool  `parquet:"is_night"`

	BurstCount          int64    `parquet:"burst_count"`
	InterArrivalSeconds *float64 `parquet:"inter_arrival_seconds,optional"`

	AssetCriticality int32 `parquet:"asset_criticality"`

	Label int32 `parquet:"label"`
}

// FromRecord converts one feature record to its on-disk row.
func FromRecord(rec *models.FeatureRecord) Row {
	return Row{
		ID:                  rec.ID,
		OrgID:               rec.OrgID,
		IncidentID:          rec.IncidentID,
		AlertID:             rec.AlertID,
		AccountObjectID:     rec.AccountObjectID,
		TimestampMS:         rec.Timestamp.UTC().UnixMilli(),
		DetectorID:          rec.DetectorID,
		Category:            rec.Category,
		EntityType:          rec.EntityType,
		HourOfDay:           int32(rec.HourOfDay),
		DayOfWeek:           int32(rec.DayOfWeek),
		IsNight:             rec.IsNight,
		BurstCount:          rec.BurstCount,
		InterArrivalSeconds: rec.InterArrivalSeconds,
		AssetCriticality:    int32(rec.AssetCriticality),
		Label:               int32(rec.Label),
	}
}

// WriteFile writes all records to a Parquet file at path.
func WriteFile(path string, records []*models.FeatureRecord) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	w := parquet.NewGenericWriter[Row](f, parquet.Compression(&parquet.Snappy))
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = FromRecord(rec)
	}
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			f.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}

	logger.Debugf("Parquet file written: %s (%d rows)", path, len(rows))
	return nil
}

// ReadFile reads all rows back. Used by tests and the verify subcommand.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[Row](f)
	defer r.Close()

	rows := make([]Row, 0, 1024)
	buf := make([]Row, 256)
	for {
		n, err := r.Read(buf)
		rows = append(rows, buf[:n]...)
		if err != nil {
			break
		}
	}
	return rows, nil
}
