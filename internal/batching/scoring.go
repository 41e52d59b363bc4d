package batching

import (
	"sort"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/policy"
)

// ScoreCluster grows jobs greedily within one cluster: seed with the oldest
// order, then repeatedly insert the remaining order with the highest positive
// savings that stays under the detour cap, until the batch is full or no
// candidate qualifies.
//
// Singletons consult the rolling horizon: young seeds are deferred (returned
// in the second slice) so the next cycle can try again with more material;
// seeds past MaxWaitTime become SINGLE jobs regardless.
//
// A non-nil error means job assembly violated an invariant; the caller skips
// the whole cluster and leaves its orders pooled.
func ScoreCluster(
	cluster []models.Order,
	m eta.Matrix,
	pol policy.Policy,
	orderAgeSeconds map[string]float64,
) ([]models.Job, []models.Order, error) {
	remaining := append([]models.Order(nil), cluster...)
	sort.SliceStable(remaining, func(i, j int) bool { return orderLess(remaining[i], remaining[j]) })

	var jobs []models.Job
	var deferred []models.Order

	for len(remaining) > 0 {
		seed := remaining[0]
		remaining = remaining[1:]

		seedSingle, err := m.Time(seed.Pickup, seed.Dropoff)
		if err != nil {
			// Matrix cannot price even the seed's own route; retry next cycle.
			deferred = append(deferred, seed)
			continue
		}

		activeStops := []models.Stop{models.PickupStop(seed), models.DropoffStop(seed)}
		activeIDs := []string{seed.ID}
		baselineSumSingle := seedSingle
		totalTime := seedSingle

		for len(activeIDs) < pol.MaxBatchSize && len(remaining) > 0 {
			bestIdx := -1
			var bestEval FeasibilityResult
			var bestSavings float64
			var bestBaseline float64

			for idx, o := range remaining {
				tSingle, err := m.Time(o.Pickup, o.Dropoff)
				if err != nil {
					continue
				}
				ev := EvaluateInsertion(activeStops, o, m)
				if !ev.IsFeasible {
					continue
				}
				newBaseline := baselineSumSingle + tSingle
				savings := newBaseline - ev.BestTimeSeconds
				if savings <= 0 {
					continue
				}
				detour := ev.BestTimeSeconds / newBaseline
				detourCap := pol.MultiDetourCap
				if len(activeIDs)+1 == 2 {
					detourCap = pol.PairDetourCap
				}
				if detour > detourCap {
					continue
				}
				// remaining is age-sorted, so on equal savings the earlier
				// index is the older order and the incumbent wins.
				if bestIdx < 0 || savings > bestSavings {
					bestIdx = idx
					bestEval = ev
					bestSavings = savings
					bestBaseline = newBaseline
				}
			}

			if bestIdx < 0 {
				break
			}

			activeStops = bestEval.BestStops
			activeIDs = append(activeIDs, remaining[bestIdx].ID)
			baselineSumSingle = bestBaseline
			totalTime = bestEval.BestTimeSeconds
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		}

		if len(activeIDs) >= 2 {
			job, err := models.NewJob(activeIDs, activeStops, totalTime)
			if err != nil {
				return nil, nil, err
			}
			job.ETA = totalTime
			job.DetourFactor = totalTime / baselineSumSingle
			job.SavingsSeconds = baselineSumSingle - totalTime
			jobs = append(jobs, job)
			continue
		}

		age := orderAgeSeconds[seed.ID]
		if pol.EnableRollingHorizon && age < pol.MaxWaitTime.Seconds() {
			deferred = append(deferred, seed)
			continue
		}

		job, err := models.NewJob(activeIDs, activeStops, totalTime)
		if err != nil {
			return nil, nil, err
		}
		job.ETA = totalTime
		job.DetourFactor = 1.0
		jobs = append(jobs, job)
	}

	return jobs, deferred, nil
}

// Seed and candidate tie-break: oldest created_at first, then smallest id.
func orderLess(a, b models.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
