package report

import (
	"fmt"
	"strings"

	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/simulation"
	"github.com/nvandessel/quorumlab/internal/sortition"
)

// StakeSummary describes the loaded stake distribution.
type StakeSummary struct {
	File          string                   `json:"file,omitempty"`
	Accounts      int                      `json:"accounts"`
	TotalStake    float64                  `json:"total_stake"`
	Concentration []sortition.ShareHolders `json:"concentration"`
}

// Reference is a published comparison value for a step. Zero fields are absent.
type Reference struct {
	Ratio  float64 `json:"ratio,omitempty"`
	Voters float64 `json:"voters,omitempty"`
}

// StepDerivation is the theory and simulation outcome of one step.
type StepDerivation struct {
	Params            models.ConsensusParameters `json:"params"`
	TheoreticalVoters float64                    `json:"theoretical_voters"`
	Simulation        simulation.Result          `json:"simulation"`
	RatioToTheory     float64                    `json:"ratio_to_theory"`
	Reference         Reference                  `json:"reference"`
}

// Derivation is the full output of a derive run.
type Derivation struct {
	Stakes StakeSummary     `json:"stakes"`
	Steps  []StepDerivation `json:"steps"`
}

// RenderDerivation formats d as the derive console report.
func RenderDerivation(d *Derivation) string {
	var b strings.Builder

	section(&b, narrowRule, "STAKE DISTRIBUTION SUMMARY")
	fmt.Fprintf(&b, "Total accounts: %s\n", comma(int64(d.Stakes.Accounts)))
	fmt.Fprintf(&b, "Total stake: %s Algos\n", commaFloat(d.Stakes.TotalStake))
	for _, c := range d.Stakes.Concentration {
		fmt.Fprintf(&b, "Top %d accounts hold %d%% of stake\n", c.Accounts, c.Percent)
	}

	section(&b, narrowRule, "CONSENSUS PARAMETERS")
	for _, s := range d.Steps {
		fmt.Fprintf(&b, "%s: committee=%d, threshold=%d\n",
			s.Params.Step.Title(), s.Params.CommitteeSize, s.Params.Threshold)
	}

	section(&b, narrowRule, "THEORETICAL EXPECTED UNIQUE VOTERS (full committee)")
	for _, s := range d.Steps {
		fmt.Fprintf(&b, "%s: %.1f unique voters expected\n", s.Params.Step.Title(), s.TheoreticalVoters)
	}

	trials := 0
	if len(d.Steps) > 0 {
		trials = d.Steps[0].Simulation.Trials
	}
	section(&b, narrowRule, fmt.Sprintf("SIMULATED VOTERS TO REACH THRESHOLD (%d trials each)", trials))
	for _, s := range d.Steps {
		sim := s.Simulation
		fmt.Fprintf(&b, "\n%s votes to threshold %d:\n", s.Params.Step.Title(), s.Params.Threshold)
		fmt.Fprintf(&b, "  Mean: %.1f voters (std: %.1f)\n", sim.Mean, sim.Std)
		fmt.Fprintf(&b, "  Ratio to theory: %.3fx\n", s.RatioToTheory)
		if s.Reference.Ratio > 0 {
			fmt.Fprintf(&b, "  Reference:       %.3fx (~%.0f voters)\n", s.Reference.Ratio, s.Reference.Voters)
		}
		if sim.EmptyTrials > 0 || sim.UnreachedTrials > 0 {
			fmt.Fprintf(&b, "  Empty trials: %d, unreached: %d (%s)\n",
				sim.EmptyTrials, sim.UnreachedTrials, sim.Policy)
		}
	}

	section(&b, narrowRule, "COMPARISON SUMMARY")
	fmt.Fprintf(&b, "%-6s %-10s %-12s %-8s %-8s %-10s\n", "Step", "Theory", "Simulated", "Ratio", "Ref", "Empirical")
	fmt.Fprintf(&b, "%s %s %s %s %s %s\n",
		strings.Repeat("-", 6), strings.Repeat("-", 10), strings.Repeat("-", 12),
		strings.Repeat("-", 8), strings.Repeat("-", 8), strings.Repeat("-", 10))
	for _, s := range d.Steps {
		ref := orNA("%.3f", s.Reference.Ratio, s.Reference.Ratio > 0)
		emp := orNA("~%.0f", s.Reference.Voters, s.Reference.Voters > 0)
		fmt.Fprintf(&b, "%-6s %-10.1f %-12.1f %-8.3f %-8s %-10s\n",
			s.Params.Step.Title(), s.TheoreticalVoters, s.Simulation.Mean, s.RatioToTheory, ref, emp)
	}
	return b.String()
}
