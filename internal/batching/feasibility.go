package batching

import (
	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
)

// FeasibilityResult is the outcome of searching for the cheapest legal
// insertion of one order into an existing stop sequence. IsFeasible is false
// only when the matrix could not price any candidate sequence.
type FeasibilityResult struct {
	IsFeasible      bool
	BestStops       []models.Stop
	BestTimeSeconds float64
}

// EvaluateInsertion enumerates every position pair (i, j) with
// 0 <= i <= j <= len(existing), placing the new order's pickup at i and its
// dropoff after slot j, and returns the sequence with minimum total traversal
// time. Existing stops keep their relative order, so precedence for orders
// already in the sequence is preserved by construction; i <= j preserves it
// for the new order.
//
// Ties resolve to the lexicographically smallest (i, j): the scan goes i
// ascending then j ascending and only a strictly better time replaces the
// incumbent. Candidates with any unpriceable leg are skipped.
func EvaluateInsertion(existing []models.Stop, o models.Order, m eta.Matrix) FeasibilityResult {
	pickup := models.PickupStop(o)
	dropoff := models.DropoffStop(o)

	if len(existing) == 0 {
		trivial := []models.Stop{pickup, dropoff}
		t, err := routeTime(trivial, m)
		if err != nil {
			return FeasibilityResult{}
		}
		return FeasibilityResult{IsFeasible: true, BestStops: trivial, BestTimeSeconds: t}
	}

	n := len(existing)
	best := FeasibilityResult{}
	candidate := make([]models.Stop, 0, n+2)

	for i := 0; i <= n; i++ {
		for j := i; j <= n; j++ {
			candidate = candidate[:0]
			candidate = append(candidate, existing[:i]...)
			candidate = append(candidate, pickup)
			candidate = append(candidate, existing[i:j]...)
			candidate = append(candidate, dropoff)
			candidate = append(candidate, existing[j:]...)

			t, err := routeTime(candidate, m)
			if err != nil {
				continue
			}
			if !best.IsFeasible || t < best.BestTimeSeconds {
				best = FeasibilityResult{
					IsFeasible:      true,
					BestStops:       append([]models.Stop(nil), candidate...),
					BestTimeSeconds: t,
				}
			}
		}
	}
	return best
}

// routeTime sums leg durations along the sequence, starting at the first stop.
func routeTime(stops []models.Stop, m eta.Matrix) (float64, error) {
	var total float64
	for k := 0; k+1 < len(stops); k++ {
		t, err := m.Time(stops[k].Coord, stops[k+1].Coord)
		if err != nil {
			return 0, err
		}
		total += t
	}
	return total, nil
}
