package features

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"triagepipe/pkg/models"
)

// Velocity holds the burst and inter-arrival columns for one alert.
type Velocity struct {
	BurstCount          int64
	InterArrivalSeconds *float64
}

// ComputeVelocity derives burst_count and inter_arrival_seconds for a batch
// of alerts. The result is positionally aligned with the input slice.
//
// Alerts are processed in ascending timestamp order with an alert-id
// tie-break, so identical inputs always produce identical outputs. Groups
// (organizations for bursts, accounts for inter-arrival) are independent
// and are folded in parallel; each worker owns its groups' output slots
// outright, so the merge is plain slice writes with no synchronization.
func ComputeVelocity(ctx context.Context, alerts []*models.Alert, workers int) ([]Velocity, error) {
	if workers <= 0 {
		workers = 8
	}

	order := sortedOrder(alerts)
	out := make([]Velocity, len(alerts))

	byOrg := make(map[int64][]int, 64)
	byAccount := make(map[int64][]int, 64)
	for _, idx := range order {
		a := alerts[idx]
		byOrg[a.OrgID] = append(byOrg[a.OrgID], idx)
		if a.AccountObjectID != models.UnknownID {
			byAccount[a.AccountObjectID] = append(byAccount[a.AccountObjectID], idx)
		}
	}

	// Each phase derives its own group from the caller's context; a
	// finished group's derived context is canceled, so it must never be
	// handed to the next phase.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, indices := range byOrg {
		indices := indices
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := NewBurstState()
			for _, idx := range indices {
				a := alerts[idx]
				out[idx].BurstCount = st.Next(a.OrgID, a.HourBucket())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, indices := range byAccount {
		indices := indices
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := NewArrivalState()
			for _, idx := range indices {
				a := alerts[idx]
				out[idx].InterArrivalSeconds = st.Next(a.AccountObjectID, a.Timestamp)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// sortedOrder returns input indices in ascending (timestamp, alert id, id)
// order. The id tie-breaks keep runs deterministic when timestamps collide.
func sortedOrder(alerts []*models.Alert) []int {
	order := make([]int, len(alerts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := alerts[order[x]], alerts[order[y]]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.AlertID != b.AlertID {
			return a.AlertID < b.AlertID
		}
		return a.ID < b.ID
	})
	return order
}
