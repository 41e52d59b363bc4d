package policy

import (
	"errors"
	"fmt"
	"time"
)

// Policy is the immutable bag of thresholds controlling batching and wave
// dispatch. Swap behavior by constructing a new value; never mutate one that
// a running cycle may be reading.
type Policy struct {
	// Batch size and candidate control.
	MaxBatchSize         int
	MaxClusterCandidates int

	// Detour caps: t_batch / sum(t_single). Lower is stricter.
	PairDetourCap  float64
	MultiDetourCap float64

	// Clustering mode. When chaining is on the whole pool is one cluster and
	// the insertion search alone decides what rides together.
	EnableContinuousChaining bool

	// Rolling horizon: defer young singletons hoping to batch them later.
	EnableRollingHorizon bool
	MaxWaitTime          time.Duration

	// Wave dispatch.
	WaveSize           int
	WaveCount          int
	WaveInterval       time.Duration
	AcceptanceDeadline time.Duration
}

func (p Policy) Validate() error {
	var errs []error
	if p.MaxBatchSize < 1 {
		errs = append(errs, fmt.Errorf("max_batch_size must be >= 1, got %d", p.MaxBatchSize))
	}
	if p.MaxClusterCandidates < 1 {
		errs = append(errs, fmt.Errorf("max_cluster_candidates must be >= 1, got %d", p.MaxClusterCandidates))
	}
	if p.PairDetourCap < 1.0 {
		errs = append(errs, fmt.Errorf("pair_detour_cap must be >= 1.0, got %g", p.PairDetourCap))
	}
	if p.MultiDetourCap < 1.0 {
		errs = append(errs, fmt.Errorf("multi_detour_cap must be >= 1.0, got %g", p.MultiDetourCap))
	}
	if p.MaxWaitTime < 0 {
		errs = append(errs, fmt.Errorf("max_wait_time must be >= 0, got %s", p.MaxWaitTime))
	}
	if p.WaveSize < 1 {
		errs = append(errs, fmt.Errorf("wave_size must be >= 1, got %d", p.WaveSize))
	}
	if p.WaveCount < 1 {
		errs = append(errs, fmt.Errorf("wave_count must be >= 1, got %d", p.WaveCount))
	}
	if p.WaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("wave_interval must be > 0, got %s", p.WaveInterval))
	}
	if p.AcceptanceDeadline <= 0 {
		errs = append(errs, fmt.Errorf("acceptance_deadline must be > 0, got %s", p.AcceptanceDeadline))
	}
	return errors.Join(errs...)
}

// Default is the everyday tuning: dynamic batches up to 10, moderate caps,
// three-minute horizon, five waves of eight drivers.
func Default() Policy {
	return Policy{
		MaxBatchSize:             10,
		MaxClusterCandidates:     20,
		PairDetourCap:            1.15,
		MultiDetourCap:           1.25,
		EnableContinuousChaining: true,
		EnableRollingHorizon:     true,
		MaxWaitTime:              180 * time.Second,
		WaveSize:                 8,
		WaveCount:                5,
		WaveInterval:             30 * time.Second,
		AcceptanceDeadline:       180 * time.Second,
	}
}

// Peak batches more aggressively: looser caps, a longer horizon before young
// singletons are forced out, and shorter gaps between waves so jobs clear the
// floor faster. Chaining stays as in Default.
func Peak() Policy {
	p := Default()
	p.PairDetourCap = 1.18
	p.MultiDetourCap = 1.35
	p.MaxWaitTime = 240 * time.Second
	p.WaveInterval = 20 * time.Second
	return p
}

// Offpeak protects single-order ETAs: tight caps, pickup_id clustering only,
// short horizon.
func Offpeak() Policy {
	p := Default()
	p.PairDetourCap = 1.10
	p.MultiDetourCap = 1.18
	p.EnableContinuousChaining = false
	p.MaxWaitTime = 120 * time.Second
	return p
}
