package simulation

import (
	"math"
	"testing"
)

// AssertPrefixMinimal asserts that voters is the shortest prefix of weights
// reaching threshold: the prefix of length voters reaches it and the prefix of
// length voters-1 does not.
func AssertPrefixMinimal(t *testing.T, weights []uint64, threshold uint64, voters int) {
	t.Helper()
	if voters < 1 || voters > len(weights) {
		t.Errorf("AssertPrefixMinimal: voters %d out of range [1, %d]", voters, len(weights))
		return
	}
	var sum uint64
	for _, w := range weights[:voters-1] {
		sum += w
	}
	if sum >= threshold {
		t.Errorf("AssertPrefixMinimal: prefix of %d already reaches %d (sum %d)", voters-1, threshold, sum)
	}
	if sum+weights[voters-1] < threshold {
		t.Errorf("AssertPrefixMinimal: prefix of %d sums to %d < %d", voters, sum+weights[voters-1], threshold)
	}
}

// AssertSamplesPositive asserts that every sample counts at least one voter.
func AssertSamplesPositive(t *testing.T, res Result) {
	t.Helper()
	for i, v := range res.Samples {
		if v < 1 {
			t.Errorf("AssertSamplesPositive: sample %d is %d", i, v)
		}
	}
}

// AssertTrialAccounting asserts that every trial produced a sample or was
// counted as empty or excluded.
func AssertTrialAccounting(t *testing.T, res Result) {
	t.Helper()
	excluded := 0
	if res.Policy == string(PolicyExclude) {
		excluded = res.UnreachedTrials
	}
	if got := len(res.Samples) + res.EmptyTrials + excluded; got != res.Trials {
		t.Errorf("AssertTrialAccounting: samples %d + empty %d + excluded %d = %d, want %d trials",
			len(res.Samples), res.EmptyTrials, excluded, got, res.Trials)
	}
}

// AssertMeanWithin asserts that the result mean lies in [lo, hi].
func AssertMeanWithin(t *testing.T, res Result, lo, hi float64) {
	t.Helper()
	if res.Mean < lo || res.Mean > hi {
		t.Errorf("AssertMeanWithin: mean %.3f not in [%.3f, %.3f]", res.Mean, lo, hi)
	}
}

// AssertRatioToTheory asserts that mean / theory lies in [lo, hi].
func AssertRatioToTheory(t *testing.T, res Result, theory, lo, hi float64) {
	t.Helper()
	ratio := res.RatioToTheory(theory)
	if ratio < lo || ratio > hi {
		t.Errorf("AssertRatioToTheory: mean %.3f / theory %.3f = %.4f not in [%.4f, %.4f]", res.Mean, theory, ratio, lo, hi)
	}
}

// AssertSameResult asserts that two runs produced identical samples.
func AssertSameResult(t *testing.T, a, b Result) {
	t.Helper()
	if len(a.Samples) != len(b.Samples) {
		t.Errorf("AssertSameResult: sample counts differ: %d vs %d", len(a.Samples), len(b.Samples))
		return
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Errorf("AssertSameResult: sample %d differs: %d vs %d", i, a.Samples[i], b.Samples[i])
			return
		}
	}
	if math.Abs(a.Mean-b.Mean) > 1e-12 || math.Abs(a.Std-b.Std) > 1e-12 {
		t.Errorf("AssertSameResult: stats differ: (%.6f, %.6f) vs (%.6f, %.6f)", a.Mean, a.Std, b.Mean, b.Std)
	}
}
