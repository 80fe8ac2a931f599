package simulation

import (
	"math/rand/v2"

	"github.com/nvandessel/quorumlab/internal/sampler"
)

// VotersToThreshold returns the length of the shortest prefix of weights whose
// cumulative sum reaches threshold. When no prefix reaches it, the full length is
// returned with reached == false.
func VotersToThreshold(weights []uint64, threshold uint64) (voters int, reached bool) {
	var cumulative uint64
	for i, w := range weights {
		cumulative += w
		if cumulative >= threshold {
			return i + 1, true
		}
	}
	return len(weights), false
}

// trialOutcome is the scalar extracted from one trial before it is discarded.
type trialOutcome struct {
	voters   int
	selected int
	weight   uint64
	empty    bool
	reached  bool
}

// trialState is per-worker scratch space reused across trials.
type trialState struct {
	r       *rand.Rand
	sampler sampler.WeightSampler
	weights []uint64
}

// run performs one trial over precomputed selection probabilities.
func (ts *trialState) run(stakes, probs []float64, ratio float64, threshold uint64) trialOutcome {
	ts.weights = ts.weights[:0]
	for i, p := range probs {
		if ts.r.Float64() < p {
			ts.weights = append(ts.weights, ts.sampler.Sample(ts.r, stakes[i], ratio))
		}
	}
	if len(ts.weights) == 0 {
		return trialOutcome{empty: true}
	}

	ts.r.Shuffle(len(ts.weights), func(i, j int) {
		ts.weights[i], ts.weights[j] = ts.weights[j], ts.weights[i]
	})

	voters, reached := VotersToThreshold(ts.weights, threshold)
	out := trialOutcome{voters: voters, selected: len(ts.weights), reached: reached}
	if !reached {
		for _, w := range ts.weights {
			out.weight += w
		}
	}
	return out
}
