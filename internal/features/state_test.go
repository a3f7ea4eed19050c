package features

import (
	"encoding/json"
	"testing"
	"time"

	"triagepipe/pkg/models"
)

func TestBurstStateFoldMatchesRunningCount(t *testing.T) {
	st := NewBurstState()
	bucket := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for want := int64(1); want <= 4; want++ {
		if got := st.Next(1, bucket); got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if got := st.Next(2, bucket); got != 1 {
		t.Fatalf("other org should start at 1, got %d", got)
	}
}

func TestBurstStateRoundTripsThroughJSON(t *testing.T) {
	st := NewBurstState()
	bucket := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	st.Next(1, bucket)
	st.Next(1, bucket)

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewBurstState()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := restored.Next(1, bucket); got != 3 {
		t.Fatalf("restored state should continue from 2, got %d", got)
	}
}

func TestBurstStatePruneDropsOldBuckets(t *testing.T) {
	st := NewBurstState()
	old := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	st.Next(1, old)
	st.Next(1, recent)

	st.Prune(recent)
	if len(st.Counts) != 1 {
		t.Fatalf("expected one surviving bucket, got %d", len(st.Counts))
	}
	if got := st.Next(1, recent); got != 2 {
		t.Fatalf("recent bucket should survive pruning, got %d", got)
	}
}

func TestArrivalStateGapAndIdentity(t *testing.T) {
	st := NewArrivalState()
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if gap := st.Next(100, base); gap != nil {
		t.Fatalf("first alert should have nil gap, got %v", *gap)
	}
	gap := st.Next(100, base.Add(300*time.Second))
	if gap == nil || *gap != 300.0 {
		t.Fatalf("expected 300s gap, got %v", gap)
	}
	if gap := st.Next(models.UnknownID, base); gap != nil {
		t.Fatalf("unknown account should always be nil, got %v", *gap)
	}
}

func TestArrivalStateRoundTripsThroughJSON(t *testing.T) {
	st := NewArrivalState()
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	st.Next(100, base)

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewArrivalState()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	gap := restored.Next(100, base.Add(60*time.Second))
	if gap == nil || *gap != 60.0 {
		t.Fatalf("restored state should yield 60s gap, got %v", gap)
	}
}
