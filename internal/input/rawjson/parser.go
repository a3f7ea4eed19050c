// Package rawjson parses one raw alert from a JSON object keyed by the
// source table's column names, as delivered on the streaming queue.
package rawjson

import (
	"encoding/json"
	"fmt"

	"triagepipe/pkg/models"
)

// Parse converts a JSON payload into a RawRecord. Numeric identifier
// values are accepted as JSON numbers or strings; either way they stay
// untyped here and are coerced by the schema normalizer.
func Parse(data []byte) (models.RawRecord, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.RawRecord{}, fmt.Errorf("parse raw alert: %w", err)
	}

	return models.RawRecord{
		ID:              getString(raw, "Id"),
		OrgID:           getString(raw, "OrgId"),
		IncidentID:      getString(raw, "IncidentId"),
		AlertID:         getString(raw, "AlertId"),
		Timestamp:       getString(raw, "Timestamp"),
		DetectorID:      getString(raw, "DetectorId"),
		AlertTitle:      getString(raw, "AlertTitle"),
		Category:        getString(raw, "Category"),
		MitreTechniques: getString(raw, "MitreTechniques"),
		IncidentGrade:   getString(raw, "IncidentGrade"),
		EntityType:      getString(raw, "EntityType"),
		EvidenceRole:    getString(raw, "EvidenceRole"),
		DeviceID:        getString(raw, "DeviceId"),
		AccountSid:      getString(raw, "AccountSid"),
		AccountObjectID: getString(raw, "AccountObjectId"),
		AccountUpn:      getString(raw, "AccountUpn"),
		AccountName:     getString(raw, "AccountName"),
		ResourceIDName:  getString(raw, "ResourceIdName"),
		OSFamily:        getString(raw, "OSFamily"),
		CountryCode:     getString(raw, "CountryCode"),
	}, nil
}

func getString(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
