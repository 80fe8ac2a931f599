package sampler

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegimeFor(t *testing.T) {
	tests := []struct {
		expected float64
		want     Regime
	}{
		{0, RegimeUnit},
		{0.099, RegimeUnit},
		{0.1, RegimeSmallCount},
		{1, RegimeSmallCount},
		{5, RegimeSmallCount},
		{5.0001, RegimePoisson},
		{30, RegimePoisson},
		{30.0001, RegimeNormal},
		{1e6, RegimeNormal},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, RegimeFor(tt.expected), "expected=%v", tt.expected)
		})
	}
}

func TestCalibrated_NeverBelowOne(t *testing.T) {
	r := New(42)
	s := &Calibrated{}
	const ratio = 1e-3

	for _, stake := range []float64{0.001, 50, 100, 999, 1000, 5000, 5001, 29999, 30001, 1e6} {
		for i := 0; i < 2000; i++ {
			w := s.Sample(r, stake, ratio)
			require.GreaterOrEqual(t, w, uint64(1), "stake=%v", stake)
		}
	}
}

func TestCalibrated_UnitRegimeAlwaysOne(t *testing.T) {
	r := New(1)
	s := &Calibrated{}
	for i := 0; i < 1000; i++ {
		assert.Equal(t, uint64(1), s.Sample(r, 10, 0.009))
	}
}

func TestCalibrated_MeanTracksExpectation(t *testing.T) {
	const draws = 20000
	const ratio = 1e-4

	tests := []struct {
		name      string
		expected  float64
		tolerance float64
	}{
		{"poisson regime", 10, 0.2},
		{"normal regime", 50, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(7)
			s := &Calibrated{}
			stake := tt.expected / ratio

			var sum float64
			for i := 0; i < draws; i++ {
				sum += float64(s.Sample(r, stake, ratio))
			}
			mean := sum / draws
			assert.InDelta(t, tt.expected, mean, tt.tolerance)
		})
	}
}

func TestCalibrated_SmallCountBounded(t *testing.T) {
	r := New(3)
	s := &Calibrated{}

	// With expected = 3 at most three units can be added on top of the first.
	for i := 0; i < 5000; i++ {
		w := s.Sample(r, 3000, 1e-3)
		assert.LessOrEqual(t, w, uint64(4))
	}

	// Below one expected vote there is no remaining mass to add.
	for i := 0; i < 1000; i++ {
		assert.Equal(t, uint64(1), s.Sample(r, 500, 1e-3))
	}
}

func TestCalibrated_Deterministic(t *testing.T) {
	s := &Calibrated{}
	a, b := New(99), New(99)
	for i := 0; i < 500; i++ {
		stake := float64(1 + i*130)
		require.Equal(t, s.Sample(a, stake, 1e-3), s.Sample(b, stake, 1e-3))
	}
}

type countingObserver struct {
	hits atomic.Int64
}

func (c *countingObserver) PoissonCapHit(float64) {
	c.hits.Add(1)
}

// nearOneSource makes every Float64 draw just below one, so the Poisson product
// never drops below exp(-mean).
type nearOneSource struct{}

func (nearOneSource) Uint64() uint64 { return math.MaxUint64 }

func TestSamplePoisson_CapClamps(t *testing.T) {
	w, capped := samplePoisson(rand.New(nearOneSource{}), 10)
	assert.True(t, capped)
	assert.Equal(t, uint64(1000), w)

	w, capped = samplePoisson(New(5), 10)
	assert.False(t, capped)
	assert.GreaterOrEqual(t, w, uint64(1))
}

func TestCalibrated_ObserverSeesCapHit(t *testing.T) {
	obs := &countingObserver{}
	s := &Calibrated{Observer: obs}

	w := s.Sample(rand.New(nearOneSource{}), 10000, 1e-3)
	assert.Equal(t, uint64(1000), w)
	assert.Equal(t, int64(1), obs.hits.Load())
}

func TestCalibrated_ObserverNotCalledWithoutCap(t *testing.T) {
	obs := &countingObserver{}
	s := &Calibrated{Observer: obs}
	r := New(11)
	for i := 0; i < 1000; i++ {
		s.Sample(r, 20000, 1e-3)
	}
	assert.Equal(t, int64(0), obs.hits.Load())
}

func TestSampleNormal_ClampsNegativeTail(t *testing.T) {
	r := New(13)
	for i := 0; i < 1000; i++ {
		w := sampleNormal(r, 0.5, 100)
		require.GreaterOrEqual(t, w, uint64(1))
	}
	assert.False(t, math.IsNaN(float64(sampleNormal(r, 31, 5))))
}
