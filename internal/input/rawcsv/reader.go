// Package rawcsv reads the raw alert table from a headered CSV file.
package rawcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"triagepipe/internal/logger"
	"triagepipe/pkg/models"
)

// Reader streams raw records from a CSV file. Columns are located by
// header name; a column absent from the file reads as null for every row.
type Reader struct {
	file    *os.File
	csv     *csv.Reader
	columns map[string]int
	line    int
}

// Open opens the file and reads the header row.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	cr := csv.NewReader(f)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	logger.Infof("CSV reader initialized: %s (%d columns)", path, len(columns))

	return &Reader{file: f, csv: cr, columns: columns, line: 1}, nil
}

// Next returns the next raw record, or io.EOF when the file is exhausted.
func (r *Reader) Next() (models.RawRecord, error) {
	row, err := r.csv.Read()
	if err != nil {
		return models.RawRecord{}, err
	}
	r.line++

	field := func(name string) string {
		idx, ok := r.columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	return models.RawRecord{
		ID:              field("Id"),
		OrgID:           field("OrgId"),
		IncidentID:      field("IncidentId"),
		AlertID:         field("AlertId"),
		Timestamp:       field("Timestamp"),
		DetectorID:      field("DetectorId"),
		AlertTitle:      field("AlertTitle"),
		Category:        field("Category"),
		MitreTechniques: field("MitreTechniques"),
		IncidentGrade:   field("IncidentGrade"),
		EntityType:      field("EntityType"),
		EvidenceRole:    field("EvidenceRole"),
		DeviceID:        field("DeviceId"),
		AccountSid:      field("AccountSid"),
		AccountObjectID: field("AccountObjectId"),
		AccountUpn:      field("AccountUpn"),
		AccountName:     field("AccountName"),
		ResourceIDName:  field("ResourceIdName"),
		OSFamily:        field("OSFamily"),
		CountryCode:     field("CountryCode"),
		Line:            r.line,
	}, nil
}

// ReadAll drains the file.
func (r *Reader) ReadAll() ([]models.RawRecord, error) {
	records := make([]models.RawRecord, 0, 4096)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", r.line+1, err)
		}
		records = append(records, rec)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
