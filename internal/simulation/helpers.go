package simulation

import (
	"fmt"

	"github.com/nvandessel/quorumlab/internal/models"
)

// StakeSpec describes a block of identical accounts for building test
// distributions.
type StakeSpec struct {
	Count int
	Stake float64
}

// BuildAccounts expands specs into accounts with generated addresses.
func BuildAccounts(specs ...StakeSpec) []models.StakeAccount {
	var out []models.StakeAccount
	for _, s := range specs {
		for i := 0; i < s.Count; i++ {
			out = append(out, models.StakeAccount{
				Address: fmt.Sprintf("ACCT%06d", len(out)),
				Stake:   s.Stake,
			})
		}
	}
	return out
}

// BuildScenario assembles a scenario over the given accounts.
func BuildScenario(accounts []models.StakeAccount, params models.ConsensusParameters, trials int, seed uint64) Scenario {
	stakes := make([]float64, len(accounts))
	var total float64
	for i, a := range accounts {
		stakes[i] = a.Stake
		total += a.Stake
	}
	return Scenario{
		Stakes:     stakes,
		TotalStake: total,
		Params:     params,
		Trials:     trials,
		Seed:       seed,
		Policy:     PolicyRetain,
	}
}

// UniformStakes returns n accounts of equal stake.
func UniformStakes(n int, stake float64) []models.StakeAccount {
	return BuildAccounts(StakeSpec{Count: n, Stake: stake})
}

// WhaleStakes returns whales large accounts followed by minnows small ones.
func WhaleStakes(whales int, whaleStake float64, minnows int, minnowStake float64) []models.StakeAccount {
	return BuildAccounts(
		StakeSpec{Count: whales, Stake: whaleStake},
		StakeSpec{Count: minnows, Stake: minnowStake},
	)
}
