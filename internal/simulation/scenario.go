package simulation

import (
	"fmt"

	"github.com/nvandessel/quorumlab/internal/models"
)

// UnreachedPolicy decides what happens to a trial whose selected weight never
// reaches the threshold.
type UnreachedPolicy string

const (
	// PolicyRetain counts such a trial as needing every selected voter.
	PolicyRetain UnreachedPolicy = "retain"

	// PolicyExclude drops such a trial from the samples, matching how observed
	// rounds below threshold are excluded from round analysis.
	PolicyExclude UnreachedPolicy = "exclude"
)

// Valid returns true if the policy is a recognized value.
func (p UnreachedPolicy) Valid() bool {
	switch p {
	case PolicyRetain, PolicyExclude:
		return true
	}
	return false
}

// ParseUnreachedPolicy parses a policy name. Empty means PolicyRetain.
func ParseUnreachedPolicy(s string) (UnreachedPolicy, error) {
	if s == "" {
		return PolicyRetain, nil
	}
	p := UnreachedPolicy(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid unreached policy %q (valid: retain, exclude)", s)
	}
	return p, nil
}

// Scenario defines one simulation experiment.
type Scenario struct {
	// Stakes are the account stakes; non-positive entries are never selected.
	Stakes []float64

	// TotalStake is the stake the committee ratio is computed against.
	TotalStake float64

	Params  models.ConsensusParameters
	Trials  int
	Seed    uint64
	Workers int // <= 1 runs on the calling goroutine
	Policy  UnreachedPolicy
}

// Result aggregates the voters-to-threshold samples of a scenario.
type Result struct {
	// Mean and Std are the population mean and standard deviation of Samples.
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Samples []int   `json:"samples"`

	Trials          int    `json:"trials"`
	EmptyTrials     int    `json:"empty_trials"`
	UnreachedTrials int    `json:"unreached_trials"`
	Policy          string `json:"unreached_policy"`
	Sampler         string `json:"sampler"`
	Seed            uint64 `json:"seed"`
	Workers         int    `json:"workers"`
}

// RatioToTheory returns Mean / theory, or 0 when theory is not positive.
func (r Result) RatioToTheory(theory float64) float64 {
	if theory <= 0 {
		return 0
	}
	return r.Mean / theory
}
