package decomposition

import "slices"

// Gini returns the Gini coefficient of weights:
//
//	G = sum_i (2i - n - 1) * w_i / (n * sum w)
//
// over the weights sorted ascending (1-indexed). It is 0 when there are no
// weights or they sum to zero.
func Gini(weights []uint64) float64 {
	n := len(weights)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(weights)
	slices.Sort(sorted)

	var sum, acc float64
	for i, w := range sorted {
		fw := float64(w)
		sum += fw
		acc += float64(2*(i+1)-n-1) * fw
	}
	if sum == 0 {
		return 0
	}
	return acc / (float64(n) * sum)
}
