package rounds

import (
	"github.com/nvandessel/quorumlab/internal/constants"
)

// Summary aggregates qualifying rounds with unweighted arithmetic means.
type Summary struct {
	Step           constants.Step `json:"step"`
	Threshold      uint64         `json:"threshold"`
	Rounds         int            `json:"rounds"`
	ExcludedRounds int            `json:"excluded_rounds"`

	MeanWhaleFirst   float64 `json:"mean_whale_first"`
	MeanArrival      float64 `json:"mean_arrival"`
	MeanObserved     float64 `json:"mean_observed"`
	MeanUniform      float64 `json:"mean_uniform"`
	MeanTotalVoters  float64 `json:"mean_total_voters"`
	MeanOnTime       float64 `json:"mean_on_time"`
	MeanLate         float64 `json:"mean_late"`
	MeanTotalWeight  float64 `json:"mean_total_weight"`
	MeanOnTimeWeight float64 `json:"mean_on_time_weight"`
	MeanAvgWeight    float64 `json:"mean_avg_weight"`

	// Weights pools every vote weight of every qualifying round.
	Weights []uint64      `json:"-"`
	Results []RoundResult `json:"-"`
}

// Summarize averages per-round results. An empty input gives a zero summary.
func Summarize(results []RoundResult) *Summary {
	s := &Summary{Rounds: len(results), Results: results}
	if len(results) == 0 {
		return s
	}

	for _, r := range results {
		s.MeanWhaleFirst += float64(r.WhaleFirstVoters)
		s.MeanArrival += float64(r.ArrivalVoters)
		s.MeanObserved += float64(r.ObservedVoters)
		s.MeanUniform += r.UniformVoters
		s.MeanTotalVoters += float64(r.TotalVoters)
		s.MeanOnTime += float64(r.OnTimeVoters)
		s.MeanLate += float64(r.LateVoters)
		s.MeanTotalWeight += float64(r.TotalWeight)
		s.MeanOnTimeWeight += float64(r.OnTimeWeight)
		s.MeanAvgWeight += r.AvgWeight
		s.Weights = append(s.Weights, r.Weights...)
	}

	n := float64(len(results))
	s.MeanWhaleFirst /= n
	s.MeanArrival /= n
	s.MeanObserved /= n
	s.MeanUniform /= n
	s.MeanTotalVoters /= n
	s.MeanOnTime /= n
	s.MeanLate /= n
	s.MeanTotalWeight /= n
	s.MeanOnTimeWeight /= n
	s.MeanAvgWeight /= n
	return s
}

// OnTimePercent returns the mean on-time share of voters, or 0 with no voters.
func (s *Summary) OnTimePercent() float64 {
	if s.MeanTotalVoters == 0 {
		return 0
	}
	return s.MeanOnTime / s.MeanTotalVoters * 100
}

// LatePercent returns the mean late share of voters, or 0 with no voters.
func (s *Summary) LatePercent() float64 {
	if s.MeanTotalVoters == 0 {
		return 0
	}
	return s.MeanLate / s.MeanTotalVoters * 100
}
