// Package generate produces deterministic synthetic raw alert datasets
// for local runs and tests.
package generate

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"triagepipe/pkg/models"
)

// Config controls the generated dataset.
type Config struct {
	Incidents     int
	Orgs          int
	Accounts      int
	Seed          int64
	Start         time.Time
	UnlabeledRate float64
}

var (
	grades     = []string{"FalsePositive", "BenignPositive", "TruePositive"}
	categories = []string{"InitialAccess", "Execution", "Persistence", "CredentialAccess", "Exfiltration"}
	entities   = []string{"Machine", "User", "Ip", "Url", "File", "Process", "CloudApplication", "Domain", "MailMessage"}
	techniques = []string{"T1078", "T1059", "T1547", "T1003", "T1041", ""}
)

// Records builds the synthetic rows. Same config, same rows.
func Records(cfg Config) []models.RawRecord {
	if cfg.Incidents <= 0 {
		cfg.Incidents = 100
	}
	if cfg.Orgs <= 0 {
		cfg.Orgs = 10
	}
	if cfg.Accounts <= 0 {
		cfg.Accounts = 50
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var records []models.RawRecord
	rowID := 0
	for i := 0; i < cfg.Incidents; i++ {
		org := rng.Intn(cfg.Orgs)
		grade := grades[rng.Intn(len(grades))]
		if cfg.UnlabeledRate > 0 && rng.Float64() < cfg.UnlabeledRate {
			grade = ""
		}
		incidentStart := cfg.Start.Add(time.Duration(rng.Intn(cfg.Incidents*30)) * time.Minute)

		alerts := 1 + rng.Intn(6)
		for j := 0; j < alerts; j++ {
			rowID++
			ts := incidentStart.Add(time.Duration(rng.Intn(45)) * time.Minute)
			records = append(records, models.RawRecord{
				ID:              strconv.Itoa(rowID),
				OrgID:           strconv.Itoa(org),
				IncidentID:      strconv.Itoa(i),
				AlertID:         strconv.Itoa(rowID),
				Timestamp:       ts.Format(time.RFC3339),
				DetectorID:      strconv.Itoa(rng.Intn(20)),
				Category:        categories[rng.Intn(len(categories))],
				MitreTechniques: techniques[rng.Intn(len(techniques))],
				IncidentGrade:   grade,
				EntityType:      entities[rng.Intn(len(entities))],
				EvidenceRole:    "Related",
				DeviceID:        strconv.Itoa(rng.Intn(200)),
				AccountObjectID: strconv.Itoa(rng.Intn(cfg.Accounts)),
				OSFamily:        "Windows",
				CountryCode:     "US",
				Line:            rowID + 1,
			})
		}
	}
	return records
}

// WriteCSV writes the rows as a headered CSV file.
func WriteCSV(path string, records []models.RawRecord) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Id", "OrgId", "IncidentId", "AlertId", "Timestamp", "DetectorId",
		"AlertTitle", "Category", "MitreTechniques", "IncidentGrade", "EntityType",
		"EvidenceRole", "DeviceId", "AccountSid", "AccountObjectId", "AccountUpn",
		"AccountName", "ResourceIdName", "OSFamily", "CountryCode"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{r.ID, r.OrgID, r.IncidentID, r.AlertID, r.Timestamp, r.DetectorID,
			r.AlertTitle, r.Category, r.MitreTechniques, r.IncidentGrade, r.EntityType,
			r.EvidenceRole, r.DeviceID, r.AccountSid, r.AccountObjectID, r.AccountUpn,
			r.AccountName, r.ResourceIDName, r.OSFamily, r.CountryCode}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
