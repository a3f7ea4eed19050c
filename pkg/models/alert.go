package models

import "time"

// UnknownID is the sentinel code for a null or unparseable identifier.
const UnknownID int64 = -1

// MissingCategory is the explicit category for a null categorical value.
const MissingCategory = "missing"

// RawRecord holds one raw alert row exactly as read from the source table.
// All columns are untyped strings; empty string means null.
type RawRecord struct {
	ID              string
	OrgID           string
	IncidentID      string
	AlertID         string
	Timestamp       string
	DetectorID      string
	AlertTitle      string
	Category        string
	MitreTechniques string
	IncidentGrade   string
	EntityType      string
	EvidenceRole    string
	DeviceID        string
	AccountSid      string
	AccountObjectID string
	AccountUpn      string
	AccountName     string
	ResourceIDName  string
	OSFamily        string
	CountryCode     string

	// Line is the 1-based source row number, kept for error reporting.
	Line int
}

// Alert is one normalized alert row. Identifiers are opaque integer codes
// (UnknownID when null), categoricals carry an explicit "missing" category,
// and the timestamp is UTC. Immutable once built.
type Alert struct {
	ID              int64     `json:"id"`
	OrgID           int64     `json:"org_id"`
	IncidentID      int64     `json:"incident_id"`
	AlertID         int64     `json:"alert_id"`
	Timestamp       time.Time `json:"timestamp"`
	DetectorID      int64     `json:"detector_id"`
	Category        string    `json:"category"`
	MitreTechniques string    `json:"mitre_techniques,omitempty"`
	IncidentGrade   string    `json:"incident_grade,omitempty"`
	EntityType      string    `json:"entity_type"`
	EvidenceRole    string    `json:"evidence_role"`
	DeviceID        int64     `json:"device_id"`
	AccountObjectID int64     `json:"account_object_id"`
	AccountSid      int64     `json:"account_sid"`
	AccountUpn      int64     `json:"account_upn"`
	AccountName     int64     `json:"account_name"`
	ResourceIDName  int64     `json:"resource_id_name"`
	OSFamily        string    `json:"os_family"`
	CountryCode     string    `json:"country_code"`
}

// HourBucket returns the alert timestamp floored to the hour, in UTC.
func (a *Alert) HourBucket() time.Time {
	return a.Timestamp.UTC().Truncate(time.Hour)
}

// FeatureRecord is one enriched row of the exported feature matrix:
// traceability identifiers plus the engineered columns and the label.
type FeatureRecord struct {
	ID              int64     `json:"id"`
	OrgID           int64     `json:"org_id"`
	IncidentID      int64     `json:"incident_id"`
	AlertID         int64     `json:"alert_id"`
	AccountObjectID int64     `json:"account_object_id"`
	Timestamp       time.Time `json:"timestamp"`
	DetectorID      int64     `json:"detector_id"`
	Category        string    `json:"category"`
	EntityType      string    `json:"entity_type"`

	HourOfDay int  `json:"hour_of_day"`
	DayOfWeek int  `json:"day_of_week"`
	IsNight   bool `json:"is_night"`

	BurstCount          int64    `json:"burst_count"`
	InterArrivalSeconds *float64 `json:"inter_arrival_seconds"`

	AssetCriticality int `json:"asset_criticality"`

	Label int8 `json:"label"`
}
