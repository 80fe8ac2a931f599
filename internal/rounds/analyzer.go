// Package rounds measures how many observed voters each consensus round needed
// to reach its threshold, under whale-first, arrival and log orderings, and
// compares them with a uniform-weight baseline.
package rounds

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/logging"
	"github.com/nvandessel/quorumlab/internal/metrics"
	"github.com/nvandessel/quorumlab/internal/models"
)

// RoundResult holds the per-round measurements of a qualifying round.
type RoundResult struct {
	Round uint64 `json:"round"`

	// WhaleFirstVoters counts voters to threshold with weights sorted descending.
	WhaleFirstVoters int `json:"whale_first_voters"`

	// ArrivalVoters counts voters to threshold in timestamp order.
	ArrivalVoters int `json:"arrival_voters"`

	// ObservedVoters counts voters to threshold in vote log order.
	ObservedVoters int `json:"observed_voters"`

	// UniformVoters is threshold / (total weight / total voters).
	UniformVoters float64 `json:"uniform_voters"`

	TotalWeight  uint64   `json:"total_weight"`
	TotalVoters  int      `json:"total_voters"`
	OnTimeVoters int      `json:"on_time_voters"`
	LateVoters   int      `json:"late_voters"`
	OnTimeWeight uint64   `json:"on_time_weight"`
	AvgWeight    float64  `json:"avg_weight"`
	Weights      []uint64 `json:"-"`
}

// Options wires optional observability into an Analyzer.
type Options struct {
	Metrics *metrics.AnalysisMetrics
	Trace   *logging.TraceLogger
	Logger  *slog.Logger
}

// Analyzer evaluates observed rounds of one step against its threshold.
type Analyzer struct {
	step      constants.Step
	threshold uint64
	metrics   *metrics.AnalysisMetrics
	trace     *logging.TraceLogger
	logger    *slog.Logger
}

// NewAnalyzer creates an analyzer for the step and threshold in params.
func NewAnalyzer(params models.ConsensusParameters, opts Options) (*Analyzer, error) {
	if params.Threshold <= 0 {
		return nil, &models.DomainError{Param: "threshold", Reason: "must be positive"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Analyzer{
		step:      params.Step,
		threshold: uint64(params.Threshold),
		metrics:   opts.Metrics,
		trace:     opts.Trace,
		logger:    logger,
	}, nil
}

// Threshold returns the analyzer's threshold.
func (a *Analyzer) Threshold() uint64 {
	return a.threshold
}

// AnalyzeRound measures a single round. It returns ok == false when the round's
// total weight is below the threshold; such rounds are incomplete and yield no
// partial result.
func (a *Analyzer) AnalyzeRound(r models.ObservedRound) (RoundResult, bool) {
	total := r.TotalWeight()
	if len(r.Votes) == 0 || total < a.threshold {
		return RoundResult{}, false
	}

	res := RoundResult{
		Round:       r.Round,
		TotalWeight: total,
		TotalVoters: len(r.Votes),
		Weights:     r.Weights(),
	}
	for _, v := range r.Votes {
		if v.IsLate {
			res.LateVoters++
			continue
		}
		res.OnTimeVoters++
		res.OnTimeWeight += v.Weight
	}

	res.WhaleFirstVoters = WhaleFirstVoters(r.Votes, a.threshold)
	res.ArrivalVoters = ArrivalVoters(r.Votes, a.threshold)
	res.ObservedVoters = ObservedVoters(r.Votes, a.threshold)
	res.AvgWeight = float64(total) / float64(len(r.Votes))
	res.UniformVoters = UniformVoters(a.threshold, total, len(r.Votes))
	return res, true
}

// Analyze measures every round of the log and aggregates the qualifying ones.
// It returns models.ErrInsufficientData when no round reaches the threshold.
func (a *Analyzer) Analyze(vl *models.VoteLog) (*Summary, error) {
	if vl.Step != "" && a.step != "" && vl.Step != a.step {
		return nil, &models.DomainError{
			Param:  "step",
			Reason: fmt.Sprintf("vote log is %s, analyzer is %s", vl.Step, a.step),
		}
	}

	var results []RoundResult
	excluded := 0
	for _, r := range vl.Sorted() {
		res, ok := a.AnalyzeRound(r)
		a.metrics.ObserveRound(a.step.String(), ok)
		if !ok {
			excluded++
			a.trace.RoundExcluded(a.step.String(), r.Round, r.TotalWeight(), int(a.threshold))
			a.logger.Debug("round below threshold", "step", a.step, "round", r.Round, "weight", r.TotalWeight())
			continue
		}
		results = append(results, res)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%s: %d rounds below threshold %d: %w",
			a.step, excluded, a.threshold, models.ErrInsufficientData)
	}

	s := Summarize(results)
	s.Step = a.step
	s.Threshold = a.threshold
	s.ExcludedRounds = excluded

	a.logger.Info("rounds analyzed",
		"step", a.step,
		"rounds", s.Rounds,
		"excluded", excluded,
		"whale_first", s.MeanWhaleFirst,
		"arrival", s.MeanArrival,
		"observed", s.MeanObserved,
		"uniform", s.MeanUniform,
	)
	return s, nil
}

// WhaleFirstVoters counts voters, heaviest first, until the cumulative weight
// reaches threshold. Equal weights keep their input order.
func WhaleFirstVoters(votes []models.VoteRecord, threshold uint64) int {
	sorted := slices.Clone(votes)
	slices.SortStableFunc(sorted, func(a, b models.VoteRecord) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	return prefixToThreshold(sorted, threshold)
}

// ArrivalVoters counts voters in timestamp order until the cumulative weight
// reaches threshold.
func ArrivalVoters(votes []models.VoteRecord, threshold uint64) int {
	sorted := slices.Clone(votes)
	slices.SortStableFunc(sorted, func(a, b models.VoteRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return prefixToThreshold(sorted, threshold)
}

// ObservedVoters counts voters in the order they appear in the vote log until
// the cumulative weight reaches threshold.
func ObservedVoters(votes []models.VoteRecord, threshold uint64) int {
	return prefixToThreshold(votes, threshold)
}

// UniformVoters returns threshold / (totalWeight / voters), the voter count if
// everyone carried the round's average weight. Zero voters or zero weight yield 0.
func UniformVoters(threshold, totalWeight uint64, voters int) float64 {
	if voters == 0 || totalWeight == 0 {
		return 0
	}
	avg := float64(totalWeight) / float64(voters)
	return float64(threshold) / avg
}

func prefixToThreshold(votes []models.VoteRecord, threshold uint64) int {
	var cumulative uint64
	for i, v := range votes {
		cumulative += v.Weight
		if cumulative >= threshold {
			return i + 1
		}
	}
	return len(votes)
}
