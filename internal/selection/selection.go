package selection

import (
	"errors"
	"sort"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/policy"
)

// Eligible keeps drivers who can actually take the job: online in a state
// that permits a new collection, with capacity for every order in it.
func Eligible(drivers []models.Driver, requiredCapacity int) []models.Driver {
	out := make([]models.Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != models.DriverAvailable && d.Status != models.DriverTransitToCollect {
			continue
		}
		if d.MaxCapacity < requiredCapacity {
			continue
		}
		out = append(out, d)
	}
	return out
}

// BuildDriverWaves orders eligible drivers by travel time to the job's first
// stop and chunks them into WaveCount waves of WaveSize, padding with empty
// waves when drivers run out. Equal travel times break on smaller driver id.
//
// When the matrix cannot price a driver's approach we fall back to a
// haversine estimate instead of dropping the driver: a flaky routing backend
// should degrade wave ordering, not empty the waves.
func BuildDriverWaves(job models.Job, drivers []models.Driver, m eta.Matrix, pol policy.Policy) [][]string {
	waves := make([][]string, pol.WaveCount)
	for i := range waves {
		waves[i] = []string{}
	}
	if len(job.Stops) == 0 {
		return waves
	}
	pickup := job.Stops[0].Coord

	eligible := Eligible(drivers, len(job.OrderIDs))
	type ranked struct {
		id  string
		eta float64
	}
	rankedList := make([]ranked, 0, len(eligible))
	for _, d := range eligible {
		t, err := m.Time(d.Location, pickup)
		if err != nil {
			if !errors.Is(err, eta.ErrMatrixUnavailable) {
				continue
			}
			t = eta.EstimateSeconds(d.Location, pickup, 0)
		}
		rankedList = append(rankedList, ranked{id: d.ID, eta: t})
	}
	sort.Slice(rankedList, func(i, j int) bool {
		if rankedList[i].eta != rankedList[j].eta {
			return rankedList[i].eta < rankedList[j].eta
		}
		return rankedList[i].id < rankedList[j].id
	})

	for i, r := range rankedList {
		w := i / pol.WaveSize
		if w >= pol.WaveCount {
			break
		}
		waves[w] = append(waves[w], r.id)
	}
	return waves
}
