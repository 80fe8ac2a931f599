package sortition

import "sort"

// ShareHolders reports how many of the largest accounts hold a share of total stake.
type ShareHolders struct {
	Percent  int `json:"percent"`
	Accounts int `json:"accounts"`
}

// Concentration returns, for each percentage, the smallest number of top accounts
// (stake descending) whose cumulative stake reaches that share of the total.
func Concentration(stakes []float64, percents []int) []ShareHolders {
	sorted := make([]float64, len(stakes))
	copy(sorted, stakes)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var total float64
	for _, s := range sorted {
		total += s
	}

	out := make([]ShareHolders, 0, len(percents))
	for _, pct := range percents {
		target := total * float64(pct) / 100
		count := 0
		var cumulative float64
		for _, s := range sorted {
			cumulative += s
			count++
			if cumulative >= target {
				break
			}
		}
		out = append(out, ShareHolders{Percent: pct, Accounts: count})
	}
	return out
}
