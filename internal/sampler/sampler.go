package sampler

import (
	"fmt"
	"math/rand/v2"
)

// WeightSampler draws a weight >= 1 for an account known to be selected.
type WeightSampler interface {
	// Sample returns the weight of an account with the given stake under
	// ratio = committee_size / total_stake.
	Sample(r *rand.Rand, stake, ratio float64) uint64

	// Name identifies the implementation in reports and stored runs.
	Name() string
}

// CapObserver is notified when a bounded sampling loop gives up and clamps.
// Implementations must be safe for concurrent use.
type CapObserver interface {
	PoissonCapHit(expected float64)
}

// Names of the built-in samplers.
const (
	NameCalibrated = "calibrated"
	NameExact      = "exact"
)

// ByName returns a built-in sampler. obs may be nil.
func ByName(name string, obs CapObserver) (WeightSampler, error) {
	switch name {
	case "", NameCalibrated:
		return &Calibrated{Observer: obs}, nil
	case NameExact:
		return &Exact{}, nil
	}
	return nil, fmt.Errorf("unknown sampler %q (valid: calibrated, exact)", name)
}

// Observers fans a cap hit out to every observer in the list.
type Observers []CapObserver

// PoissonCapHit implements CapObserver.
func (o Observers) PoissonCapHit(expected float64) {
	for _, obs := range o {
		if obs != nil {
			obs.PoissonCapHit(expected)
		}
	}
}
