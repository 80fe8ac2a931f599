package models

import (
	"sort"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// StakeAccount is a single account in a stake distribution snapshot.
type StakeAccount struct {
	// Address is the opaque account key.
	Address string `json:"address" yaml:"address"`

	// Stake is the account balance in major currency units. Always > 0 once loaded.
	Stake float64 `json:"stake" yaml:"stake"`
}

// StakeDistribution is an immutable set of accounts keyed by address.
type StakeDistribution struct {
	accounts []StakeAccount
	dormant  []StakeAccount
	total    float64
}

// NewStakeDistribution builds a distribution from accounts. Accounts with
// non-positive stake take no part in sortition and are kept aside as dormant.
// Duplicate addresses are rejected.
func NewStakeDistribution(accounts []StakeAccount) (*StakeDistribution, error) {
	seen := make(map[string]bool, len(accounts))
	kept := make([]StakeAccount, 0, len(accounts))
	var dormant []StakeAccount
	var total float64
	for _, a := range accounts {
		if seen[a.Address] {
			return nil, &DomainError{Param: "address", Reason: "duplicate account " + a.Address}
		}
		seen[a.Address] = true
		if a.Stake <= 0 {
			dormant = append(dormant, a)
			continue
		}
		kept = append(kept, a)
		total += a.Stake
	}
	return &StakeDistribution{accounts: kept, dormant: dormant, total: total}, nil
}

// Dormant returns a copy of the accounts with non-positive stake, in load order.
func (d *StakeDistribution) Dormant() []StakeAccount {
	out := make([]StakeAccount, len(d.dormant))
	copy(out, d.dormant)
	return out
}

// Len returns the number of accounts.
func (d *StakeDistribution) Len() int {
	return len(d.accounts)
}

// TotalStake returns the sum of all stakes.
func (d *StakeDistribution) TotalStake() float64 {
	return d.total
}

// Accounts returns a copy of the accounts in load order.
func (d *StakeDistribution) Accounts() []StakeAccount {
	out := make([]StakeAccount, len(d.accounts))
	copy(out, d.accounts)
	return out
}

// Stakes returns the stake values in load order.
func (d *StakeDistribution) Stakes() []float64 {
	out := make([]float64, len(d.accounts))
	for i, a := range d.accounts {
		out[i] = a.Stake
	}
	return out
}

// Ranked returns the accounts sorted by stake descending. Ties are broken by
// address so the order is deterministic.
func (d *StakeDistribution) Ranked() []StakeAccount {
	return rankAccounts(d.Accounts())
}

// RankedAll is Ranked followed by the dormant accounts in the same order.
func (d *StakeDistribution) RankedAll() []StakeAccount {
	return append(d.Ranked(), rankAccounts(d.Dormant())...)
}

func rankAccounts(out []StakeAccount) []StakeAccount {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stake != out[j].Stake {
			return out[i].Stake > out[j].Stake
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// ConsensusParameters are the committee size and threshold of one step.
type ConsensusParameters struct {
	Step          constants.Step `json:"step" yaml:"-"`
	CommitteeSize int            `json:"committee_size" yaml:"committee_size"`
	Threshold     int            `json:"threshold" yaml:"threshold"`
}

// Validate checks 0 < threshold <= committee_size.
func (p ConsensusParameters) Validate() error {
	if p.CommitteeSize <= 0 {
		return &DomainError{Param: "committee_size", Reason: "must be positive"}
	}
	if p.Threshold <= 0 {
		return &DomainError{Param: "threshold", Reason: "must be positive"}
	}
	if p.Threshold > p.CommitteeSize {
		return &DomainError{Param: "threshold", Reason: "exceeds committee_size"}
	}
	return nil
}

// ThresholdFraction returns threshold / committee_size.
func (p ConsensusParameters) ThresholdFraction() float64 {
	if p.CommitteeSize == 0 {
		return 0
	}
	return float64(p.Threshold) / float64(p.CommitteeSize)
}
