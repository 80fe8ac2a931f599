// Package decomposition splits the gap between theoretical and observed voter
// counts into threshold termination, whale concentration and overshoot terms.
package decomposition

import (
	"fmt"
	"math"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/rounds"
)

// Inputs are the quantities a decomposition is computed from.
type Inputs struct {
	Step          constants.Step `json:"step"`
	CommitteeSize int            `json:"committee_size"`
	Threshold     int            `json:"threshold"`

	// TheoreticalVoters is N, the expected unique voters of the full committee.
	TheoreticalVoters float64 `json:"theoretical_voters"`

	// WhaleFirstVoters is V_whale, the mean whale-first voters to threshold.
	WhaleFirstVoters float64 `json:"whale_first_voters"`

	// TotalVoters is V_total, the mean observed voters per round including late ones.
	TotalVoters float64 `json:"total_voters"`

	OnTimeVoters      float64  `json:"on_time_voters"`
	LateVoters        float64  `json:"late_voters"`
	ObservedAvgWeight float64  `json:"observed_avg_weight"`
	Weights           []uint64 `json:"-"`
}

// InputsFromSummary builds decomposition inputs from a round summary.
func InputsFromSummary(params models.ConsensusParameters, theoretical float64, s *rounds.Summary) Inputs {
	return Inputs{
		Step:              params.Step,
		CommitteeSize:     params.CommitteeSize,
		Threshold:         params.Threshold,
		TheoreticalVoters: theoretical,
		WhaleFirstVoters:  s.MeanWhaleFirst,
		TotalVoters:       s.MeanTotalVoters,
		OnTimeVoters:      s.MeanOnTime,
		LateVoters:        s.MeanLate,
		ObservedAvgWeight: s.MeanAvgWeight,
		Weights:           s.Weights,
	}
}

// Gap is a computed decomposition. All fields are plain numbers so callers
// can assert on them directly.
type Gap struct {
	Inputs

	// UniformWeight is w_uniform = C / N.
	UniformWeight float64 `json:"uniform_weight"`

	// UniformVoters is V_uniform = T / w_uniform.
	UniformVoters float64 `json:"uniform_voters"`

	ThresholdEffect float64 `json:"threshold_effect"` // N - V_uniform
	WhaleEffect     float64 `json:"whale_effect"`     // V_uniform - V_whale
	OvershootEffect float64 `json:"overshoot_effect"` // V_total - V_whale

	ThresholdPercent float64 `json:"threshold_percent"` // of N
	WhalePercent     float64 `json:"whale_percent"`     // of V_uniform

	// Rho is V_whale / V_uniform.
	Rho float64 `json:"rho"`

	Gini     float64  `json:"gini"`
	Warnings []string `json:"warnings,omitempty"`
}

// Decompose computes the gap decomposition. N, C and T must be positive.
func Decompose(in Inputs) (*Gap, error) {
	if in.TheoreticalVoters <= 0 || math.IsNaN(in.TheoreticalVoters) {
		return nil, &models.DomainError{Param: "theoretical_voters", Reason: "must be positive"}
	}
	if in.CommitteeSize <= 0 {
		return nil, &models.DomainError{Param: "committee_size", Reason: "must be positive"}
	}
	if in.Threshold <= 0 {
		return nil, &models.DomainError{Param: "threshold", Reason: "must be positive"}
	}

	g := &Gap{Inputs: in}
	n := in.TheoreticalVoters
	g.UniformWeight = float64(in.CommitteeSize) / n
	g.UniformVoters = float64(in.Threshold) / g.UniformWeight

	g.ThresholdEffect = n - g.UniformVoters
	g.WhaleEffect = g.UniformVoters - in.WhaleFirstVoters
	g.OvershootEffect = in.TotalVoters - in.WhaleFirstVoters

	g.ThresholdPercent = g.ThresholdEffect / n * 100
	if g.UniformVoters > 0 {
		g.WhalePercent = g.WhaleEffect / g.UniformVoters * 100
		g.Rho = in.WhaleFirstVoters / g.UniformVoters
	}
	g.Gini = Gini(in.Weights)

	if g.OvershootEffect < 0 {
		g.Warnings = append(g.Warnings, fmt.Sprintf(
			"negative overshoot %.2f: mean observed voters %.2f below whale-first voters %.2f",
			g.OvershootEffect, in.TotalVoters, in.WhaleFirstVoters))
	}
	if in.WhaleFirstVoters == 0 {
		g.Warnings = append(g.Warnings, "no observed rounds: whale-first voters is zero")
	}
	return g, nil
}

// TotalGap returns N - V_total.
func (g *Gap) TotalGap() float64 {
	return g.TheoreticalVoters - g.TotalVoters
}

// Residual returns how far the three terms are from telescoping to TotalGap.
// It is zero up to floating-point rounding.
func (g *Gap) Residual() float64 {
	return g.ThresholdEffect + g.WhaleEffect - g.OvershootEffect - g.TotalGap()
}

// Savings returns DeltaV = V_uniform - V_whale.
func (g *Gap) Savings() float64 {
	return g.WhaleEffect
}

// CumulativeReduction returns (1 - voters / N) * 100.
func (g *Gap) CumulativeReduction(voters float64) float64 {
	return (1 - voters/g.TheoreticalVoters) * 100
}
