package tiering

import (
	"sort"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
)

// TierStats aggregates the votes of one tier.
type TierStats struct {
	Label         string  `json:"tier"`
	Votes         int     `json:"votes"`
	Weight        uint64  `json:"weight"`
	VotesPercent  float64 `json:"votes_percent"`
	WeightPercent float64 `json:"weight_percent"`
	AvgWeight     float64 `json:"avg_weight"`
}

// StepProfile is the tier breakdown of one step's votes.
type StepProfile struct {
	Step        constants.Step `json:"step"`
	Tiers       []TierStats    `json:"tiers"`
	TotalVotes  int            `json:"total_votes"`
	TotalWeight uint64         `json:"total_weight"`
	Rounds      int            `json:"rounds"`

	// UnknownVotes counts votes whose sender is not in the stake table.
	UnknownVotes int `json:"unknown_votes"`

	bounds []int
}

// VotesPerRound returns TotalVotes / Rounds, or 0 with no rounds.
func (p *StepProfile) VotesPerRound() float64 {
	if p.Rounds == 0 {
		return 0
	}
	return float64(p.TotalVotes) / float64(p.Rounds)
}

// TopWeightPercent returns the share of weight cast by the tiers whose upper
// bound is at most n, e.g. n = 10 for the top ten accounts.
func (p *StepProfile) TopWeightPercent(n int) float64 {
	if p.TotalWeight == 0 {
		return 0
	}
	var w uint64
	for i, b := range p.bounds {
		if b > n {
			break
		}
		w += p.Tiers[i].Weight
	}
	return float64(w) * 100 / float64(p.TotalWeight)
}

// Profile is the result of profiling one or more steps.
type Profile struct {
	Steps []*StepProfile `json:"steps"`

	// UnknownSenders lists distinct senders missing from the stake table.
	UnknownSenders []string `json:"unknown_senders"`
}

// Profiler ranks accounts by stake and assigns votes to rank tiers.
type Profiler struct {
	mapper *TierMapper
	ranks  map[string]int
}

// NewProfiler ranks dist's accounts (1-indexed, stake descending). Dormant
// accounts rank after every staked one, so their votes are not unknown.
func NewProfiler(dist *models.StakeDistribution, mapper *TierMapper) *Profiler {
	ranked := dist.RankedAll()
	ranks := make(map[string]int, len(ranked))
	for i, a := range ranked {
		ranks[a.Address] = i + 1
	}
	return &Profiler{mapper: mapper, ranks: ranks}
}

// Rank returns the 1-indexed rank of addr and whether it is known.
func (p *Profiler) Rank(addr string) (int, bool) {
	r, ok := p.ranks[addr]
	return r, ok
}

// Profile builds the tier breakdown for each vote log. Unknown senders count
// toward the open-ended tier.
func (p *Profiler) Profile(logs ...*models.VoteLog) *Profile {
	out := &Profile{UnknownSenders: []string{}}
	unknown := make(map[string]struct{})

	tiers := p.mapper.Tiers()
	bounds := make([]int, 0, len(tiers))
	for _, t := range tiers {
		if t.Upper != 0 {
			bounds = append(bounds, t.Upper)
		}
	}

	for _, vl := range logs {
		sp := &StepProfile{
			Step:   vl.Step,
			Tiers:  make([]TierStats, len(tiers)),
			Rounds: len(vl.Rounds),
			bounds: bounds,
		}
		for i, t := range tiers {
			sp.Tiers[i].Label = t.Label
		}

		for _, r := range vl.Rounds {
			for _, v := range r.Votes {
				tier := p.mapper.Open()
				if rank, ok := p.ranks[v.Sender]; ok {
					tier = p.mapper.MapRank(rank)
				} else {
					unknown[v.Sender] = struct{}{}
					sp.UnknownVotes++
				}
				ts := &sp.Tiers[tier.Index]
				ts.Votes++
				ts.Weight += v.Weight
				sp.TotalVotes++
				sp.TotalWeight += v.Weight
			}
		}

		for i := range sp.Tiers {
			ts := &sp.Tiers[i]
			if sp.TotalVotes > 0 {
				ts.VotesPercent = float64(ts.Votes) * 100 / float64(sp.TotalVotes)
			}
			if sp.TotalWeight > 0 {
				ts.WeightPercent = float64(ts.Weight) * 100 / float64(sp.TotalWeight)
			}
			if ts.Votes > 0 {
				ts.AvgWeight = float64(ts.Weight) / float64(ts.Votes)
			}
		}
		out.Steps = append(out.Steps, sp)
	}

	for s := range unknown {
		out.UnknownSenders = append(out.UnknownSenders, s)
	}
	sort.Strings(out.UnknownSenders)
	return out
}
