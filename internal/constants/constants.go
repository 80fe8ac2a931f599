// Package constants provides named constants used throughout the quorumlab codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Weight sampling regime boundaries. These values are calibrated against observed
// credential weights and must not be tuned independently of each other.
const (
	// UnitWeightExpectation is the expected weight below which a selected account
	// always contributes exactly one vote.
	UnitWeightExpectation = 0.1

	// PoissonRegimeFloor is the exclusive lower bound of the Poisson regime.
	// Expected weights at or below this use the small-count heuristic.
	PoissonRegimeFloor = 5.0

	// NormalRegimeFloor is the exclusive lower bound of the normal regime.
	NormalRegimeFloor = 30.0

	// PoissonIterationCap bounds the multiplicative-uniform Poisson loop.
	PoissonIterationCap = 1000

	// SmallCountStepProbability caps the per-step increment probability of the
	// small-count heuristic.
	SmallCountStepProbability = 0.5

	// BoxMullerFloor keeps the first Box-Muller uniform away from zero.
	BoxMullerFloor = 1e-10
)

// Selection probability constants
const (
	// NegligibleSelectionProbability is the probability below which an account's
	// conditional expected weight is reported as exactly one.
	NegligibleSelectionProbability = 1e-10
)

// Default consensus parameters per step (committee size, threshold).
const (
	DefaultSoftCommitteeSize = 2990
	DefaultSoftThreshold     = 2267

	DefaultCertCommitteeSize = 1500
	DefaultCertThreshold     = 1112

	DefaultNextCommitteeSize = 5000
	DefaultNextThreshold     = 3838
)

// Simulation defaults.
const (
	// DefaultTrials is the number of Monte Carlo trials per step.
	DefaultTrials = 1000

	// ProgressInterval is how often (in trials) simulation progress is logged.
	ProgressInterval = 200
)

// ConcentrationShares are the percentages of total stake reported in the
// "top N accounts hold X%" summary.
var ConcentrationShares = []int{10, 20, 30, 40, 50}

// Vote log step codes.
const (
	SoftStepCode = 1
	CertStepCode = 2
)

// TierUpperBounds are the inclusive upper stake ranks of the vote profile
// tiers. Ranks beyond the last bound fall in the open-ended tier.
var TierUpperBounds = []int{10, 20, 30, 50, 100, 200, 500}

// TopAccountsShown is how many top-ranked accounts the profile report lists.
const TopAccountsShown = 30
