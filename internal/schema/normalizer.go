// Package schema coerces raw alert rows to their declared column types.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"triagepipe/pkg/models"
)

// Error reports a malformed value in a named column. Rows failing
// normalization are rejected individually; the batch continues.
type Error struct {
	Column string
	Value  string
	Line   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema: column %s line %d: cannot coerce %q", e.Column, e.Line, e.Value)
}

// timestampLayouts lists the accepted source timestamp formats.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Normalizer coerces raw records to typed alerts and tracks per-column
// null rates for the statistics report.
type Normalizer struct {
	rows     int64
	nullSeen map[string]int64
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{nullSeen: make(map[string]int64, 16)}
}

// Normalize coerces one raw record. It never discards the row itself; a
// coercion failure is returned as *Error for the caller to accumulate.
func (n *Normalizer) Normalize(raw models.RawRecord) (*models.Alert, error) {
	n.rows++

	id, err := n.identifier("Id", raw.ID, raw.Line)
	if err != nil {
		return nil, err
	}
	orgID, err := n.identifier("OrgId", raw.OrgID, raw.Line)
	if err != nil {
		return nil, err
	}
	incidentID, err := n.identifier("IncidentId", raw.IncidentID, raw.Line)
	if err != nil {
		return nil, err
	}
	alertID, err := n.identifier("AlertId", raw.AlertID, raw.Line)
	if err != nil {
		return nil, err
	}
	detectorID, err := n.identifier("DetectorId", raw.DetectorID, raw.Line)
	if err != nil {
		return nil, err
	}
	deviceID, err := n.identifier("DeviceId", raw.DeviceID, raw.Line)
	if err != nil {
		return nil, err
	}
	accountObjectID, err := n.identifier("AccountObjectId", raw.AccountObjectID, raw.Line)
	if err != nil {
		return nil, err
	}
	accountSid, err := n.identifier("AccountSid", raw.AccountSid, raw.Line)
	if err != nil {
		return nil, err
	}
	accountUpn, err := n.identifier("AccountUpn", raw.AccountUpn, raw.Line)
	if err != nil {
		return nil, err
	}
	accountName, err := n.identifier("AccountName", raw.AccountName, raw.Line)
	if err != nil {
		return nil, err
	}
	resourceIDName, err := n.identifier("ResourceIdName", raw.ResourceIDName, raw.Line)
	if err != nil {
		return nil, err
	}

	ts, err := n.timestamp("Timestamp", raw.Timestamp, raw.Line)
	if err != nil {
		return nil, err
	}

	return &models.Alert{
		ID:              id,
		OrgID:           orgID,
		IncidentID:      incidentID,
		AlertID:         alertID,
		Timestamp:       ts,
		DetectorID:      detectorID,
		Category:        n.categorical("Category", raw.Category),
		MitreTechniques: strings.TrimSpace(raw.MitreTechniques),
		IncidentGrade:   strings.TrimSpace(raw.IncidentGrade),
		EntityType:      n.categorical("EntityType", raw.EntityType),
		EvidenceRole:    n.categorical("EvidenceRole", raw.EvidenceRole),
		DeviceID:        deviceID,
		AccountObjectID: accountObjectID,
		AccountSid:      accountSid,
		AccountUpn:      accountUpn,
		AccountName:     accountName,
		ResourceIDName:  resourceIDName,
		OSFamily:        n.categorical("OSFamily", raw.OSFamily),
		CountryCode:     n.categorical("CountryCode", raw.CountryCode),
	}, nil
}

// NullRates returns the observed null fraction per tracked column.
func (n *Normalizer) NullRates() map[string]float64 {
	out := make(map[string]float64, len(n.nullSeen))
	if n.rows == 0 {
		return out
	}
	for col, count := range n.nullSeen {
		out[col] = float64(count) / float64(n.rows)
	}
	return out
}

// identifier coerces an integer identifier column. Null maps to UnknownID
// rather than failing: identifiers are opaque codes and absence is signal.
func (n *Normalizer) identifier(column, value string, line int) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		n.nullSeen[column]++
		return models.UnknownID, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &Error{Column: column, Value: value, Line: line}
	}
	return id, nil
}

// categorical keeps null as an explicit missing category instead of
// imputing a value.
func (n *Normalizer) categorical(column, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		n.nullSeen[column]++
		return models.MissingCategory
	}
	return v
}

func (n *Normalizer) timestamp(column, value string, line int) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		n.nullSeen[column]++
		return time.Time{}, &Error{Column: column, Value: value, Line: line}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, &Error{Column: column, Value: value, Line: line}
}
