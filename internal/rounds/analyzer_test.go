package rounds

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/metrics"
	"github.com/nvandessel/quorumlab/internal/models"
)

var base = time.Unix(1700000000, 0)

func vote(sender string, weight uint64, offset time.Duration, late bool) models.VoteRecord {
	return models.VoteRecord{Sender: sender, Weight: weight, Timestamp: base.Add(offset), IsLate: late}
}

func params(threshold int) models.ConsensusParameters {
	return models.ConsensusParameters{Step: constants.StepSoft, CommitteeSize: 2990, Threshold: threshold}
}

func TestAnalyzeRound_WhaleFirstVsArrival(t *testing.T) {
	a, err := NewAnalyzer(params(1000), Options{})
	require.NoError(t, err)

	r := models.ObservedRound{Round: 7, Votes: []models.VoteRecord{
		vote("small", 113, 0, false),
		vote("mid", 300, time.Millisecond, false),
		vote("whale", 700, 2*time.Millisecond, true),
	}}

	res, ok := a.AnalyzeRound(r)
	require.True(t, ok)
	assert.Equal(t, 2, res.WhaleFirstVoters)
	assert.Equal(t, 3, res.ArrivalVoters)
	assert.Equal(t, uint64(1113), res.TotalWeight)
	assert.Equal(t, 3, res.TotalVoters)
	assert.Equal(t, 2, res.OnTimeVoters)
	assert.Equal(t, 1, res.LateVoters)
	assert.Equal(t, uint64(413), res.OnTimeWeight)
	assert.InDelta(t, 1113.0/3, res.AvgWeight, 1e-9)
	assert.InDelta(t, 1000/(1113.0/3), res.UniformVoters, 1e-9)
}

func TestAnalyzeRound_BelowThresholdHasNoResult(t *testing.T) {
	a, err := NewAnalyzer(params(1000), Options{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		votes []models.VoteRecord
	}{
		{"empty", nil},
		{"short", []models.VoteRecord{vote("a", 500, 0, false), vote("b", 499, 0, false)}},
		{"zero weight", []models.VoteRecord{vote("a", 0, 0, false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := a.AnalyzeRound(models.ObservedRound{Round: 1, Votes: tt.votes})
			assert.False(t, ok)
			assert.Equal(t, RoundResult{}, res)
		})
	}
}

func TestArrivalVoters_OrdersByTimestamp(t *testing.T) {
	votes := []models.VoteRecord{
		vote("late-whale", 900, 10*time.Second, false),
		vote("first", 50, 0, false),
		vote("second", 60, time.Second, false),
	}
	assert.Equal(t, 3, ArrivalVoters(votes, 1000))
	assert.Equal(t, 2, ArrivalVoters(votes, 110))
	assert.Equal(t, 1, WhaleFirstVoters(votes, 900))

	// Inputs are not reordered.
	assert.Equal(t, "late-whale", votes[0].Sender)
}

func TestAnalyzeRound_LogOrderDiffersFromOtherOrders(t *testing.T) {
	a, err := NewAnalyzer(params(1000), Options{})
	require.NoError(t, err)

	r := models.ObservedRound{Round: 3, Votes: []models.VoteRecord{
		vote("tail", 200, 3*time.Millisecond, false),
		vote("mid", 300, 2*time.Millisecond, false),
		vote("small", 113, 0, false),
		vote("whale", 700, time.Millisecond, false),
	}}

	res, ok := a.AnalyzeRound(r)
	require.True(t, ok)
	assert.Equal(t, 2, res.WhaleFirstVoters)
	assert.Equal(t, 3, res.ArrivalVoters)
	assert.Equal(t, 4, res.ObservedVoters)
	assert.Equal(t, 4, ObservedVoters(r.Votes, 1000))
	assert.Equal(t, 1, ObservedVoters(r.Votes, 200))
}

func TestUniformVoters_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, UniformVoters(1000, 0, 5))
	assert.Equal(t, 0.0, UniformVoters(1000, 100, 0))
	assert.InDelta(t, 10.0, UniformVoters(1000, 1000, 10), 1e-12)
}

func TestAnalyze_AggregatesQualifyingRounds(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAnalysisMetrics(reg)
	a, err := NewAnalyzer(params(100), Options{Metrics: m})
	require.NoError(t, err)

	vl := models.NewVoteLog(constants.StepSoft)
	// Round 1: weights 60, 40 -> whale 2, arrival 2.
	vl.Add(1, vote("a", 60, 0, false))
	vl.Add(1, vote("b", 40, time.Second, false))
	// Round 2: weights 100, 10, 10 -> whale 1, arrival 3 (whale arrives last).
	vl.Add(2, vote("c", 10, 0, false))
	vl.Add(2, vote("d", 10, time.Second, true))
	vl.Add(2, vote("e", 100, 2*time.Second, false))
	// Round 3: below threshold.
	vl.Add(3, vote("f", 99, 0, false))

	s, err := a.Analyze(vl)
	require.NoError(t, err)

	assert.Equal(t, constants.StepSoft, s.Step)
	assert.Equal(t, 2, s.Rounds)
	assert.Equal(t, 1, s.ExcludedRounds)
	assert.InDelta(t, 1.5, s.MeanWhaleFirst, 1e-12)
	assert.InDelta(t, 2.5, s.MeanArrival, 1e-12)
	assert.InDelta(t, 2.5, s.MeanObserved, 1e-12)
	assert.InDelta(t, 2.5, s.MeanTotalVoters, 1e-12)
	assert.InDelta(t, 0.5, s.MeanLate, 1e-12)
	assert.InDelta(t, 2.0, s.MeanOnTime, 1e-12)
	assert.InDelta(t, 80.0, s.OnTimePercent(), 1e-9)
	assert.InDelta(t, 20.0, s.LatePercent(), 1e-9)
	// Uniform: round 1 = 100/(100/2) = 2, round 2 = 100/(120/3) = 2.5.
	assert.InDelta(t, 2.25, s.MeanUniform, 1e-12)
	assert.Len(t, s.Weights, 5)

	expected := `
# HELP quorumlab_analysis_rounds_total Observed rounds by outcome (qualified or excluded)
# TYPE quorumlab_analysis_rounds_total counter
quorumlab_analysis_rounds_total{outcome="excluded",step="soft"} 1
quorumlab_analysis_rounds_total{outcome="qualified",step="soft"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "quorumlab_analysis_rounds_total"))
}

func TestAnalyze_NoQualifyingRounds(t *testing.T) {
	a, err := NewAnalyzer(params(1000), Options{})
	require.NoError(t, err)

	vl := models.NewVoteLog(constants.StepSoft)
	vl.Add(1, vote("a", 10, 0, false))

	_, err = a.Analyze(vl)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestAnalyze_StepMismatch(t *testing.T) {
	a, err := NewAnalyzer(params(10), Options{})
	require.NoError(t, err)

	_, err = a.Analyze(models.NewVoteLog(constants.StepCert))
	assert.True(t, errors.Is(err, models.ErrDomain))
}

func TestNewAnalyzer_RejectsNonPositiveThreshold(t *testing.T) {
	_, err := NewAnalyzer(params(0), Options{})
	assert.True(t, errors.Is(err, models.ErrDomain))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Rounds)
	assert.Equal(t, 0.0, s.MeanWhaleFirst)
	assert.Equal(t, 0.0, s.OnTimePercent())
	assert.False(t, math.IsNaN(s.LatePercent()))
}
