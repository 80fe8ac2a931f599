package sampler

import (
	"math"
	"math/rand/v2"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// Regime is the approximation used for a given expected weight.
type Regime int

const (
	RegimeUnit       Regime = iota // expected < 0.1, always one
	RegimeSmallCount               // 0.1 <= expected <= 5
	RegimePoisson                  // 5 < expected <= 30
	RegimeNormal                   // expected > 30
)

func (r Regime) String() string {
	switch r {
	case RegimeUnit:
		return "unit"
	case RegimeSmallCount:
		return "small-count"
	case RegimePoisson:
		return "poisson"
	case RegimeNormal:
		return "normal"
	}
	return "unknown"
}

// RegimeFor returns the regime the calibrated sampler uses for expected = stake * ratio.
func RegimeFor(expected float64) Regime {
	switch {
	case expected > constants.NormalRegimeFloor:
		return RegimeNormal
	case expected > constants.PoissonRegimeFloor:
		return RegimePoisson
	case expected < constants.UnitWeightExpectation:
		return RegimeUnit
	default:
		return RegimeSmallCount
	}
}

// Calibrated is the default sampler. It approximates the conditional binomial
// piecewise and clamps every result to at least one.
type Calibrated struct {
	// Observer, when non-nil, is told about Poisson loops that hit the cap.
	Observer CapObserver
}

// Name implements WeightSampler.
func (c *Calibrated) Name() string {
	return NameCalibrated
}

// Sample implements WeightSampler.
func (c *Calibrated) Sample(r *rand.Rand, stake, ratio float64) uint64 {
	expected := stake * ratio

	switch RegimeFor(expected) {
	case RegimeNormal:
		std := math.Sqrt(stake * ratio * (1 - ratio))
		return sampleNormal(r, expected, std)
	case RegimePoisson:
		w, capped := samplePoisson(r, expected)
		if capped && c.Observer != nil {
			c.Observer.PoissonCapHit(expected)
		}
		return w
	case RegimeUnit:
		return 1
	default:
		return sampleSmallCount(r, expected)
	}
}

// sampleNormal uses one Box-Muller draw, rounds half up and clamps to one.
func sampleNormal(r *rand.Rand, mean, std float64) uint64 {
	u1 := math.Max(constants.BoxMullerFloor, r.Float64())
	u2 := r.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	w := math.Floor(mean + std*z + 0.5)
	if w < 1 {
		return 1
	}
	return uint64(w)
}

// samplePoisson multiplies uniforms until the product drops below exp(-mean).
// The loop is bounded by PoissonIterationCap; when the bound is reached the
// result is clamped to the cap and capped is true.
func samplePoisson(r *rand.Rand, mean float64) (w uint64, capped bool) {
	limit := math.Exp(-mean)
	product := 1.0
	k := 0
	for product > limit {
		if k == constants.PoissonIterationCap {
			return constants.PoissonIterationCap, true
		}
		k++
		product *= r.Float64()
	}
	if k-1 < 1 {
		return 1, false
	}
	return uint64(k - 1), false
}

// sampleSmallCount starts at one and adds a unit with probability
// min(0.5, remaining) while expected mass beyond the first unit remains.
func sampleSmallCount(r *rand.Rand, expected float64) uint64 {
	w := uint64(1)
	remaining := expected - 1
	for remaining > 0 && r.Float64() < math.Min(constants.SmallCountStepProbability, remaining) {
		w++
		remaining--
	}
	return w
}
