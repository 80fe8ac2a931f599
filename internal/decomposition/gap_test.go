package decomposition

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/rounds"
)

func certInputs() Inputs {
	return Inputs{
		Step:              constants.StepCert,
		CommitteeSize:     1500,
		Threshold:         1112,
		TheoreticalVoters: 233,
		WhaleFirstVoters:  131,
		TotalVoters:       144,
		Weights:           []uint64{1, 2, 3, 400},
	}
}

func TestDecompose_Terms(t *testing.T) {
	g, err := Decompose(certInputs())
	require.NoError(t, err)

	assert.InDelta(t, 1500.0/233, g.UniformWeight, 1e-12)
	assert.InDelta(t, 1112/(1500.0/233), g.UniformVoters, 1e-9)
	assert.InDelta(t, 172.7, g.UniformVoters, 0.05)
	assert.InDelta(t, 233-g.UniformVoters, g.ThresholdEffect, 1e-12)
	assert.InDelta(t, g.UniformVoters-131, g.WhaleEffect, 1e-12)
	assert.InDelta(t, 13.0, g.OvershootEffect, 1e-12)
	assert.InDelta(t, 131/g.UniformVoters, g.Rho, 1e-12)
	assert.InDelta(t, (1-g.Rho)*100, g.WhalePercent, 1e-9)
	assert.InDelta(t, g.WhaleEffect, g.Savings(), 0)
	assert.Empty(t, g.Warnings)
}

func TestDecompose_Telescopes(t *testing.T) {
	tests := []Inputs{
		certInputs(),
		{CommitteeSize: 2990, Threshold: 2267, TheoreticalVoters: 354, WhaleFirstVoters: 260.4, TotalVoters: 303.7},
		{CommitteeSize: 5000, Threshold: 3838, TheoreticalVoters: 1e-3, WhaleFirstVoters: 1e6, TotalVoters: 3},
		{CommitteeSize: 1, Threshold: 1, TheoreticalVoters: 7.25, WhaleFirstVoters: 0, TotalVoters: 0},
	}
	for _, in := range tests {
		g, err := Decompose(in)
		require.NoError(t, err)
		sum := g.ThresholdEffect + g.WhaleEffect - g.OvershootEffect
		want := in.TheoreticalVoters - in.TotalVoters
		assert.InDelta(t, want, sum, 1e-9*math.Max(1, math.Abs(in.WhaleFirstVoters)))
		assert.InDelta(t, 0, g.Residual(), 1e-9*math.Max(1, math.Abs(in.WhaleFirstVoters)))
	}
}

func TestDecompose_NegativeOvershootWarns(t *testing.T) {
	in := certInputs()
	in.TotalVoters = 120
	g, err := Decompose(in)
	require.NoError(t, err)
	assert.Less(t, g.OvershootEffect, 0.0)
	require.Len(t, g.Warnings, 1)
	assert.Contains(t, g.Warnings[0], "negative overshoot")
}

func TestDecompose_DomainErrors(t *testing.T) {
	for name, mutate := range map[string]func(*Inputs){
		"zero N":         func(in *Inputs) { in.TheoreticalVoters = 0 },
		"NaN N":          func(in *Inputs) { in.TheoreticalVoters = math.NaN() },
		"zero committee": func(in *Inputs) { in.CommitteeSize = 0 },
		"zero threshold": func(in *Inputs) { in.Threshold = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			in := certInputs()
			mutate(&in)
			_, err := Decompose(in)
			assert.True(t, errors.Is(err, models.ErrDomain), "got %v", err)
		})
	}
}

func TestTable_Rows(t *testing.T) {
	in := certInputs()
	g, err := Decompose(in)
	require.NoError(t, err)

	rows := g.Table()
	require.Len(t, rows, 4)
	assert.Equal(t, StageTheoretical, rows[0].Stage)
	assert.False(t, rows[0].HasChange)
	assert.Equal(t, StageThreshold, rows[1].Stage)
	assert.InDelta(t, g.ThresholdEffect, rows[1].Change, 0)
	assert.InDelta(t, (1-g.UniformVoters/233)*100, rows[1].Cumulative, 1e-9)
	assert.Equal(t, StageWhale, rows[2].Stage)
	assert.Equal(t, StageTotalObserved, rows[3].Stage)
	assert.InDelta(t, 13.0, rows[3].Change, 1e-12)

	in.OnTimeVoters = 140
	in.LateVoters = 4
	g, err = Decompose(in)
	require.NoError(t, err)
	rows = g.Table()
	require.Len(t, rows, 5)
	assert.Equal(t, StageOnTimeObserved, rows[3].Stage)
	assert.InDelta(t, 9.0, rows[3].Change, 1e-12)
	assert.InDelta(t, 4.0, rows[4].Change, 1e-12)
}

func TestValidation(t *testing.T) {
	g, err := Decompose(certInputs())
	require.NoError(t, err)

	checks := g.Validation()
	require.Len(t, checks, 3)
	for _, c := range checks {
		if c.HasEmpirical {
			assert.True(t, c.Match, c.Metric)
		}
	}
	assert.False(t, checks[1].HasEmpirical)
}

func TestInputsFromSummary(t *testing.T) {
	s := rounds.Summarize([]rounds.RoundResult{
		{WhaleFirstVoters: 2, TotalVoters: 4, OnTimeVoters: 3, LateVoters: 1, AvgWeight: 5, Weights: []uint64{5, 5, 5, 5}},
		{WhaleFirstVoters: 4, TotalVoters: 6, OnTimeVoters: 6, AvgWeight: 3, Weights: []uint64{3, 3, 3, 3, 3, 3}},
	})
	params := models.ConsensusParameters{Step: constants.StepSoft, CommitteeSize: 2990, Threshold: 2267}

	in := InputsFromSummary(params, 354, s)
	assert.Equal(t, constants.StepSoft, in.Step)
	assert.InDelta(t, 3.0, in.WhaleFirstVoters, 1e-12)
	assert.InDelta(t, 5.0, in.TotalVoters, 1e-12)
	assert.InDelta(t, 4.5, in.OnTimeVoters, 1e-12)
	assert.InDelta(t, 0.5, in.LateVoters, 1e-12)
	assert.InDelta(t, 4.0, in.ObservedAvgWeight, 1e-12)
	assert.Len(t, in.Weights, 10)
}
