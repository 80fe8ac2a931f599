package decomposition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGini(t *testing.T) {
	tests := []struct {
		name    string
		weights []uint64
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []uint64{5}, 0},
		{"all zero", []uint64{0, 0, 0}, 0},
		{"equal", []uint64{4, 4, 4, 4}, 0},
		{"one of two", []uint64{0, 10}, 0.5},
		{"one of four", []uint64{0, 0, 7, 0}, 0.75},
		{"one of ten", []uint64{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 0.9},
		{"unsorted", []uint64{3, 1, 2}, 2.0 / 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Gini(tt.weights), 1e-12)
		})
	}
}

func TestGini_MaxInequalityApproachesBound(t *testing.T) {
	for _, n := range []int{2, 5, 100, 1000} {
		w := make([]uint64, n)
		w[0] = 42
		assert.InDelta(t, float64(n-1)/float64(n), Gini(w), 1e-12, "n=%d", n)
	}
}

func TestGini_DoesNotMutateInput(t *testing.T) {
	w := []uint64{9, 1, 5}
	Gini(w)
	assert.Equal(t, []uint64{9, 1, 5}, w)
}
