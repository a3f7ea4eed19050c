// Package split assigns incidents to train/validation/test partitions.
// Assignment is per incident, never per alert: alerts in one incident are
// correlated and must land in the same partition.
package split

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"triagepipe/pkg/models"
)

// Partition policies.
const (
	PolicyTemporal   = "temporal"
	PolicyStratified = "stratified"
)

// PartitionError reports an incident whose alerts disagree on
// split-relevant data. Fatal: the run aborts rather than guessing.
type PartitionError struct {
	IncidentID int64
	Detail     string
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("split: incident %d: %s", e.IncidentID, e.Detail)
}

// Config controls the partitioner.
type Config struct {
	Policy             string
	TrainFraction      float64
	ValidationFraction float64
	Seed               int64
}

// incident is the per-incident view the partitioner works on.
type incident struct {
	id       int64
	earliest time.Time
	grade    string
}

// Partitioner is a deterministic incident-to-split function.
type Partitioner struct {
	cfg Config
}

// NewPartitioner validates the configuration.
func NewPartitioner(cfg Config) (*Partitioner, error) {
	switch cfg.Policy {
	case PolicyTemporal, PolicyStratified:
	default:
		return nil, fmt.Errorf("split: unknown policy %q", cfg.Policy)
	}
	if cfg.TrainFraction <= 0 || cfg.ValidationFraction < 0 ||
		cfg.TrainFraction+cfg.ValidationFraction >= 1 {
		return nil, fmt.Errorf("split: invalid fractions train=%v validation=%v",
			cfg.TrainFraction, cfg.ValidationFraction)
	}
	return &Partitioner{cfg: cfg}, nil
}

// Assign maps every incident id present in alerts to a split. Incidents
// with contradictory triage grades fail with *PartitionError.
func (p *Partitioner) Assign(alerts []*models.Alert) (map[int64]models.Split, error) {
	incidents, err := collectIncidents(alerts)
	if err != nil {
		return nil, err
	}

	switch p.cfg.Policy {
	case PolicyTemporal:
		return p.assignTemporal(incidents), nil
	case PolicyStratified:
		return p.assignStratified(incidents), nil
	}
	return nil, fmt.Errorf("split: unknown policy %q", p.cfg.Policy)
}

func collectIncidents(alerts []*models.Alert) ([]incident, error) {
	byID := make(map[int64]*incident, 256)
	for _, a := range alerts {
		inc, ok := byID[a.IncidentID]
		if !ok {
			byID[a.IncidentID] = &incident{
				id:       a.IncidentID,
				earliest: a.Timestamp,
				grade:    a.IncidentGrade,
			}
			continue
		}
		if a.Timestamp.Before(inc.earliest) {
			inc.earliest = a.Timestamp
		}
		if a.IncidentGrade != "" {
			if inc.grade == "" {
				inc.grade = a.IncidentGrade
			} else if inc.grade != a.IncidentGrade {
				return nil, &PartitionError{
					IncidentID: a.IncidentID,
					Detail:     fmt.Sprintf("contradictory grades %q and %q", inc.grade, a.IncidentGrade),
				}
			}
		}
	}

	incidents := make([]incident, 0, len(byID))
	for _, inc := range byID {
		incidents = append(incidents, *inc)
	}
	return incidents, nil
}

// assignTemporal orders incidents by earliest alert, id tie-break, and cuts
// at the configured fractions. Train always holds the earliest incidents.
func (p *Partitioner) assignTemporal(incidents []incident) map[int64]models.Split {
	sort.Slice(incidents, func(i, j int) bool {
		if !incidents[i].earliest.Equal(incidents[j].earliest) {
			return incidents[i].earliest.Before(incidents[j].earliest)
		}
		return incidents[i].id < incidents[j].id
	})
	return p.cut(incidents)
}

// assignStratified shuffles incidents within each grade using the fixed
// seed, then cuts each stratum at the configured fractions. For
// exploratory, non-temporal evaluation only.
func (p *Partitioner) assignStratified(incidents []incident) map[int64]models.Split {
	strata := make(map[string][]incident, 4)
	for _, inc := range incidents {
		strata[inc.grade] = append(strata[inc.grade], inc)
	}

	grades := make([]string, 0, len(strata))
	for grade := range strata {
		grades = append(grades, grade)
	}
	sort.Strings(grades)

	out := make(map[int64]models.Split, len(incidents))
	rng := rand.New(rand.NewSource(p.cfg.Seed))
	for _, grade := range grades {
		stratum := strata[grade]
		sort.Slice(stratum, func(i, j int) bool { return stratum[i].id < stratum[j].id })
		rng.Shuffle(len(stratum), func(i, j int) {
			stratum[i], stratum[j] = stratum[j], stratum[i]
		})
		for id, s := range p.cut(stratum) {
			out[id] = s
		}
	}
	return out
}

func (p *Partitioner) cut(ordered []incident) map[int64]models.Split {
	n := len(ordered)
	trainEnd := int(float64(n) * p.cfg.TrainFraction)
	validationEnd := trainEnd + int(float64(n)*p.cfg.ValidationFraction)

	out := make(map[int64]models.Split, n)
	for i, inc := range ordered {
		switch {
		case i < trainEnd:
			out[inc.id] = models.SplitTrain
		case i < validationEnd:
			out[inc.id] = models.SplitValidation
		default:
			out[inc.id] = models.SplitTest
		}
	}
	return out
}
