package split

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"triagepipe/pkg/models"
)

func incidentAlert(incidentID int64, grade string, ts time.Time) *models.Alert {
	return &models.Alert{
		ID:            rand.Int63(),
		IncidentID:    incidentID,
		IncidentGrade: grade,
		Timestamp:     ts,
	}
}

func temporalAlerts(n int) []*models.Alert {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var alerts []*models.Alert
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		alerts = append(alerts, incidentAlert(int64(i), "TruePositive", ts))
		alerts = append(alerts, incidentAlert(int64(i), "TruePositive", ts.Add(time.Minute)))
	}
	return alerts
}

func TestTemporalPolicyOrdersByEarliestAlert(t *testing.T) {
	p, err := NewPartitioner(Config{Policy: PolicyTemporal, TrainFraction: 0.7, ValidationFraction: 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assignment, err := p.Assign(temporalAlerts(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assignment) != 20 {
		t.Fatalf("expected 20 incidents, got %d", len(assignment))
	}

	// incidents 0..13 train, 14..16 validation, 17..19 test
	if assignment[0] != models.SplitTrain || assignment[13] != models.SplitTrain {
		t.Fatalf("expected earliest incidents in train: %v", assignment)
	}
	if assignment[14] != models.SplitValidation || assignment[16] != models.SplitValidation {
		t.Fatalf("expected middle incidents in validation: %v", assignment)
	}
	if assignment[17] != models.SplitTest || assignment[19] != models.SplitTest {
		t.Fatalf("expected latest incidents in test: %v", assignment)
	}
}

func TestAssignmentCoversAllIncidentsExactlyOnce(t *testing.T) {
	p, err := NewPartitioner(Config{Policy: PolicyStratified, TrainFraction: 0.6, ValidationFraction: 0.2, Seed: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	grades := []string{"FalsePositive", "BenignPositive", "TruePositive"}
	for _, n := range []int{1, 5, 33, 200} {
		var alerts []*models.Alert
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < n; i++ {
			grade := grades[rng.Intn(len(grades))]
			count := 1 + rng.Intn(4)
			for j := 0; j < count; j++ {
				alerts = append(alerts, incidentAlert(int64(i), grade, base.Add(time.Duration(rng.Intn(10000))*time.Second)))
			}
		}

		assignment, err := p.Assign(alerts)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(assignment) != n {
			t.Fatalf("n=%d: expected %d assignments, got %d", n, n, len(assignment))
		}
		for id, s := range assignment {
			if s != models.SplitTrain && s != models.SplitValidation && s != models.SplitTest {
				t.Fatalf("incident %d: invalid split %q", id, s)
			}
		}
	}
}

func TestStratifiedIsDeterministicForSeed(t *testing.T) {
	alerts := temporalAlerts(50)
	build := func(seed int64) map[int64]models.Split {
		p, err := NewPartitioner(Config{Policy: PolicyStratified, TrainFraction: 0.7, ValidationFraction: 0.15, Seed: seed})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out, err := p.Assign(alerts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return out
	}

	if !reflect.DeepEqual(build(42), build(42)) {
		t.Fatalf("same seed should reproduce the same assignment")
	}
}

func TestContradictoryGradesFail(t *testing.T) {
	p, err := NewPartitioner(Config{Policy: PolicyTemporal, TrainFraction: 0.7, ValidationFraction: 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	alerts := []*models.Alert{
		incidentAlert(1, "TruePositive", base),
		incidentAlert(1, "FalsePositive", base.Add(time.Minute)),
	}

	_, err = p.Assign(alerts)
	var perr *PartitionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PartitionError, got %v", err)
	}
	if perr.IncidentID != 1 {
		t.Fatalf("unexpected incident in error: %d", perr.IncidentID)
	}
}

func TestUnlabeledAlertsDoNotContradict(t *testing.T) {
	p, err := NewPartitioner(Config{Policy: PolicyTemporal, TrainFraction: 0.7, ValidationFraction: 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	alerts := []*models.Alert{
		incidentAlert(1, "", base),
		incidentAlert(1, "TruePositive", base.Add(time.Minute)),
		incidentAlert(2, "", base.Add(2*time.Minute)),
	}
	if _, err := p.Assign(alerts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	if _, err := NewPartitioner(Config{Policy: "hash", TrainFraction: 0.7, ValidationFraction: 0.15}); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	if _, err := NewPartitioner(Config{Policy: PolicyTemporal, TrainFraction: 0.9, ValidationFraction: 0.2}); err == nil {
		t.Fatalf("expected error for fractions >= 1")
	}
}
