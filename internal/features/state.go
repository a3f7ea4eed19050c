package features

import (
	"fmt"
	"time"

	"triagepipe/pkg/models"
)

// BurstState is the running count of alerts per (organization, hour bucket).
// The batch path folds a fresh state over each sorted split; the streaming
// path folds one record at a time against a checkpointed copy. Both apply
// the same update rule.
type BurstState struct {
	Counts map[string]int64 `json:"counts"`
}

// NewBurstState creates an empty burst state.
func NewBurstState() *BurstState {
	return &BurstState{Counts: make(map[string]int64, 64)}
}

// BurstKey identifies one (organization, hour bucket) group.
func BurstKey(orgID int64, bucket time.Time) string {
	return fmt.Sprintf("%d|%d", orgID, bucket.UTC().Truncate(time.Hour).Unix())
}

// Next records one alert for the organization's hour bucket and returns its
// burst count: the running number of alerts seen so far in that bucket,
// starting at 1. Callers must feed alerts in ascending timestamp order.
func (s *BurstState) Next(orgID int64, bucket time.Time) int64 {
	key := BurstKey(orgID, bucket)
	s.Counts[key]++
	return s.Counts[key]
}

// Prune drops buckets older than the cutoff. Streaming state would grow
// one entry per org-hour forever without it.
func (s *BurstState) Prune(cutoff time.Time) {
	limit := cutoff.UTC().Truncate(time.Hour).Unix()
	for key := range s.Counts {
		var orgID, bucketUnix int64
		if _, err := fmt.Sscanf(key, "%d|%d", &orgID, &bucketUnix); err != nil {
			delete(s.Counts, key)
			continue
		}
		if bucketUnix < limit {
			delete(s.Counts, key)
		}
	}
}

// ArrivalState is the last-seen timestamp per account, driving the
// inter-arrival feature. Same batch/streaming duality as BurstState.
type ArrivalState struct {
	LastSeen map[int64]time.Time `json:"last_seen"`
}

// NewArrivalState creates an empty arrival state.
func NewArrivalState() *ArrivalState {
	return &ArrivalState{LastSeen: make(map[int64]time.Time, 64)}
}

// Next records one alert for the account and returns the gap in seconds to
// the account's previous alert, or nil for its first occurrence. nil, not
// zero: zero would falsely signal maximal velocity. Alerts with an unknown
// account carry no identity to correlate on and always get nil.
func (s *ArrivalState) Next(accountID int64, ts time.Time) *float64 {
	if accountID == models.UnknownID {
		return nil
	}
	prev, seen := s.LastSeen[accountID]
	s.LastSeen[accountID] = ts.UTC()
	if !seen {
		return nil
	}
	gap := ts.UTC().Sub(prev).Seconds()
	if gap < 0 {
		gap = 0
	}
	return &gap
}
