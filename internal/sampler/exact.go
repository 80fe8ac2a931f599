package sampler

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// exactRejectionAttempts bounds rejection sampling when selection is likely.
	exactRejectionAttempts = 64

	// exactInverseSteps bounds the inverse-CDF walk when selection is unlikely.
	exactInverseSteps = 100000
)

// Exact samples Binomial(round(stake), ratio) conditioned on being at least one.
// Stakes are rounded to whole units with a minimum of one trial.
type Exact struct{}

// Name implements WeightSampler.
func (e *Exact) Name() string {
	return NameExact
}

// Sample implements WeightSampler.
func (e *Exact) Sample(r *rand.Rand, stake, ratio float64) uint64 {
	n := math.Max(1, math.Round(stake))
	b := distuv.Binomial{N: n, P: ratio, Src: r}
	pSel := -math.Expm1(n * math.Log1p(-ratio))

	if pSel >= 0.5 {
		for i := 0; i < exactRejectionAttempts; i++ {
			if x := b.Rand(); x >= 1 {
				return uint64(x)
			}
		}
		return 1
	}

	// Inverse CDF of the zero-truncated distribution: find the smallest k with
	// P(1 <= X <= k) >= u * P(X >= 1).
	u := r.Float64() * pSel
	var acc float64
	k := 1.0
	for step := 0; step < exactInverseSteps && k <= n; step++ {
		acc += b.Prob(k)
		if acc >= u {
			return uint64(k)
		}
		k++
	}
	return uint64(math.Min(k, n))
}
