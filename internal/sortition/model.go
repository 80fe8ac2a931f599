// Package sortition computes closed-form selection statistics for stake-weighted
// committee sortition.
//
// An account holding s units of stake is selected when at least one of its s
// binomial draws succeeds, each with probability ratio = committee_size / total_stake:
//
//	P(selected) = 1 - (1 - ratio)^s = 1 - exp(s * ln(1 - ratio))
//
// All probabilities are evaluated in log space so large stakes never underflow.
package sortition

import (
	"math"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
)

// Ratio returns committeeSize / totalStake, failing when the model is undefined.
func Ratio(committeeSize int, totalStake float64) (float64, error) {
	if totalStake <= 0 || math.IsNaN(totalStake) {
		return 0, &models.DomainError{Param: "total_stake", Reason: "must be positive"}
	}
	if committeeSize <= 0 {
		return 0, &models.DomainError{Param: "committee_size", Reason: "must be positive"}
	}
	ratio := float64(committeeSize) / totalStake
	if err := CheckRatio(ratio); err != nil {
		return 0, err
	}
	return ratio, nil
}

// CheckRatio verifies 0 < ratio < 1, the range where ln(1 - ratio) is defined.
func CheckRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio <= 0 {
		return &models.DomainError{Param: "ratio", Reason: "must be positive"}
	}
	if ratio >= 1 {
		return &models.DomainError{Param: "committee_size", Reason: "must be smaller than total stake"}
	}
	return nil
}

// Model evaluates selection statistics for a fixed ratio.
type Model struct {
	ratio float64
	// logMiss is ln(1 - ratio), the log probability a single unit is not drawn.
	logMiss float64
}

// NewModel validates ratio and precomputes ln(1 - ratio).
func NewModel(ratio float64) (*Model, error) {
	if err := CheckRatio(ratio); err != nil {
		return nil, err
	}
	return &Model{ratio: ratio, logMiss: math.Log1p(-ratio)}, nil
}

// NewModelFor builds a model from consensus parameters and a total stake.
func NewModelFor(params models.ConsensusParameters, totalStake float64) (*Model, error) {
	ratio, err := Ratio(params.CommitteeSize, totalStake)
	if err != nil {
		return nil, err
	}
	return NewModel(ratio)
}

// Ratio returns committee_size / total_stake.
func (m *Model) Ratio() float64 {
	return m.ratio
}

// SelectionProbability returns 1 - exp(stake * ln(1 - ratio)). Non-positive stakes
// are never selected.
func (m *Model) SelectionProbability(stake float64) float64 {
	if stake <= 0 {
		return 0
	}
	// -expm1(x) == 1 - exp(x) without cancellation for small |x|.
	p := -math.Expm1(stake * m.logMiss)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ExpectedWeight is the unconditional binomial mean stake * ratio.
func (m *Model) ExpectedWeight(stake float64) float64 {
	return stake * m.ratio
}

// ConditionalExpectedWeight returns E[X | X >= 1] = stake * ratio / P(selected).
// Accounts whose selection probability is negligible contribute exactly one.
func (m *Model) ConditionalExpectedWeight(stake float64) float64 {
	p := m.SelectionProbability(stake)
	if p < constants.NegligibleSelectionProbability {
		return 1
	}
	return m.ExpectedWeight(stake) / p
}

// ExpectedUniqueVoters sums selection probabilities over stakes. This is the
// expected number of distinct participants in a full committee, with no
// threshold termination.
func (m *Model) ExpectedUniqueVoters(stakes []float64) float64 {
	var sum float64
	for _, s := range stakes {
		sum += m.SelectionProbability(s)
	}
	return sum
}

// SelectionProbabilities returns the per-stake selection probability in input order.
func (m *Model) SelectionProbabilities(stakes []float64) []float64 {
	out := make([]float64, len(stakes))
	for i, s := range stakes {
		out[i] = m.SelectionProbability(s)
	}
	return out
}

// SelectionProbability is the package-level form of Model.SelectionProbability.
func SelectionProbability(stake, ratio float64) (float64, error) {
	m, err := NewModel(ratio)
	if err != nil {
		return 0, err
	}
	return m.SelectionProbability(stake), nil
}

// ConditionalExpectedWeight is the package-level form of Model.ConditionalExpectedWeight.
func ConditionalExpectedWeight(stake, ratio float64) (float64, error) {
	m, err := NewModel(ratio)
	if err != nil {
		return 0, err
	}
	return m.ConditionalExpectedWeight(stake), nil
}

// ExpectedUniqueVoters sums selection probabilities over accounts.
func ExpectedUniqueVoters(accounts []models.StakeAccount, ratio float64) (float64, error) {
	m, err := NewModel(ratio)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, a := range accounts {
		sum += m.SelectionProbability(a.Stake)
	}
	return sum, nil
}
