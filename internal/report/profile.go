package report

import (
	"fmt"
	"strings"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/tiering"
)

// TopShareCounts are the top-N account counts reported as weight concentration.
var TopShareCounts = []int{10, 20}

// RankedAccount is one row of the top accounts listing.
type RankedAccount struct {
	Rank    int     `json:"rank"`
	Address string  `json:"address"`
	Stake   float64 `json:"stake"`
}

// TopShare is the weight share of the top N accounts in one step.
type TopShare struct {
	Step     constants.Step `json:"step"`
	Accounts int            `json:"accounts"`
	Percent  float64        `json:"percent"`
}

// ProfileReport is the full output of a profile run.
type ProfileReport struct {
	Accounts      int                `json:"accounts"`
	TopAccounts   []RankedAccount    `json:"top_accounts"`
	Profile       *tiering.Profile   `json:"profile"`
	Concentration []TopShare         `json:"concentration"`
	VotesPerRound map[string]float64 `json:"votes_per_round"`
}

// NewProfileReport lists the top n accounts of dist and derives the
// concentration figures from p.
func NewProfileReport(dist *models.StakeDistribution, p *tiering.Profile, n int) *ProfileReport {
	ranked := dist.Ranked()
	if n > len(ranked) {
		n = len(ranked)
	}
	r := &ProfileReport{
		Accounts:      dist.Len(),
		TopAccounts:   make([]RankedAccount, 0, n),
		Profile:       p,
		VotesPerRound: make(map[string]float64, len(p.Steps)),
	}
	for i, a := range ranked[:n] {
		r.TopAccounts = append(r.TopAccounts, RankedAccount{Rank: i + 1, Address: a.Address, Stake: a.Stake})
	}
	for _, count := range TopShareCounts {
		for _, sp := range p.Steps {
			r.Concentration = append(r.Concentration, TopShare{
				Step:     sp.Step,
				Accounts: count,
				Percent:  sp.TopWeightPercent(count),
			})
		}
	}
	for _, sp := range p.Steps {
		r.VotesPerRound[sp.Step.String()] = sp.VotesPerRound()
	}
	return r
}

// RenderProfile formats r as the profile console report.
func RenderProfile(r *ProfileReport) string {
	var b strings.Builder

	section(&b, ruleWidth, "CONSENSUS VOTE PROFILE BY STAKE TIER")
	fmt.Fprintf(&b, "\n### Top %d Accounts by Stake ###\n\n", len(r.TopAccounts))
	fmt.Fprintf(&b, "%-6s %-60s %-15s\n", "Rank", "Address", "Stake (M Algo)")
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	for _, a := range r.TopAccounts {
		fmt.Fprintf(&b, "%-6d %-60s %12.2f\n", a.Rank, a.Address, a.Stake/1e6)
	}

	for _, sp := range r.Profile.Steps {
		title := fmt.Sprintf("%s VOTES", strings.ToUpper(sp.Step.String()))
		if code := sp.Step.Code(); code != 0 {
			title = fmt.Sprintf("%s (step=%d)", title, code)
		}
		section(&b, ruleWidth, title)
		fmt.Fprintf(&b, "\n%-12s %10s %10s %12s %10s %12s\n", "Tier", "Votes", "% Votes", "Weight", "% Weight", "Avg Wt/Vote")
		b.WriteString(strings.Repeat("-", 70) + "\n")
		for _, t := range sp.Tiers {
			fmt.Fprintf(&b, "%-12s %10s %9.1f%% %12s %9.1f%% %12.1f\n",
				t.Label, comma(int64(t.Votes)), t.VotesPercent, comma(int64(t.Weight)), t.WeightPercent, t.AvgWeight)
		}
		b.WriteString(strings.Repeat("-", 70) + "\n")
		fmt.Fprintf(&b, "%-12s %10s %9s%% %12s %9s%%\n",
			"TOTAL", comma(int64(sp.TotalVotes)), "100.0", comma(int64(sp.TotalWeight)), "100.0")
	}

	section(&b, ruleWidth, "SUMMARY")
	rounds := 0
	for _, sp := range r.Profile.Steps {
		rounds = max(rounds, sp.Rounds)
	}
	fmt.Fprintf(&b, "\nPer-Round Averages (over %d rounds):\n", rounds)
	for _, sp := range r.Profile.Steps {
		fmt.Fprintf(&b, "  %s votes: %.1f\n", sp.Step.Title(), sp.VotesPerRound())
	}

	b.WriteString("\nWhale Concentration:\n")
	for _, count := range TopShareCounts {
		var parts []string
		for _, s := range r.Concentration {
			if s.Accounts == count {
				parts = append(parts, fmt.Sprintf("%.1f%% of %s weight", s.Percent, s.Step))
			}
		}
		fmt.Fprintf(&b, "  Top %d accounts: %s\n", count, strings.Join(parts, ", "))
	}

	if n := len(r.Profile.UnknownSenders); n > 0 {
		fmt.Fprintf(&b, "\nUnknown senders (not in stake file): %d\n", n)
	}
	return b.String()
}
