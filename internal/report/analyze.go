package report

import (
	"fmt"
	"strings"

	"github.com/nvandessel/quorumlab/internal/decomposition"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/rounds"
)

// StepAnalysis is the round summary and gap decomposition of one step.
type StepAnalysis struct {
	Params  models.ConsensusParameters `json:"params"`
	Summary *rounds.Summary            `json:"summary"`
	Gap     *decomposition.Gap         `json:"gap"`
	Table   []decomposition.Row        `json:"table"`
	Checks  []decomposition.Check      `json:"validation"`
}

// NewStepAnalysis fills the table and validation rows from gap.
func NewStepAnalysis(params models.ConsensusParameters, s *rounds.Summary, gap *decomposition.Gap) StepAnalysis {
	return StepAnalysis{
		Params:  params,
		Summary: s,
		Gap:     gap,
		Table:   gap.Table(),
		Checks:  gap.Validation(),
	}
}

// Analysis is the full output of an analyze run.
type Analysis struct {
	File  string         `json:"file,omitempty"`
	Steps []StepAnalysis `json:"steps"`
}

// RenderAnalysis formats a as the analyze console report.
func RenderAnalysis(a *Analysis) string {
	var b strings.Builder
	for _, s := range a.Steps {
		renderStepAnalysis(&b, s)
	}
	if len(a.Steps) > 1 {
		renderComparison(&b, a.Steps)
	}
	return b.String()
}

func renderStepAnalysis(b *strings.Builder, s StepAnalysis) {
	g, sum := s.Gap, s.Summary
	name := strings.ToUpper(s.Params.Step.String())

	section(b, ruleWidth, fmt.Sprintf("WHALE IMPACT ON %s VOTES: QUANTIFIED", name))
	fmt.Fprintf(b, "\n### Baseline Parameters ###\n\n")
	fmt.Fprintf(b, "Committee size:             %d\n", s.Params.CommitteeSize)
	fmt.Fprintf(b, "Threshold:                  %d (%.0f%%)\n", s.Params.Threshold, s.Params.ThresholdFraction()*100)
	fmt.Fprintf(b, "Theoretical unique voters:  %.1f\n", g.TheoreticalVoters)

	fmt.Fprintf(b, "\n### Observed Values (mean across %d rounds) ###\n\n", sum.Rounds)
	fmt.Fprintf(b, "Voters to threshold:        %.1f (whale-first)\n", sum.MeanWhaleFirst)
	fmt.Fprintf(b, "Voters to threshold:        %.1f (arrival order)\n", sum.MeanArrival)
	fmt.Fprintf(b, "Voters to threshold:        %.1f (log order)\n", sum.MeanObserved)
	fmt.Fprintf(b, "Unique voters per round:    %.1f\n", sum.MeanTotalVoters)
	fmt.Fprintf(b, "On-time voters:             %.1f\n", sum.MeanOnTime)
	fmt.Fprintf(b, "Late voters:                %.1f\n", sum.MeanLate)
	fmt.Fprintf(b, "Total weight per round:     %.0f\n", sum.MeanTotalWeight)
	fmt.Fprintf(b, "Average weight per vote:    %.2f\n", sum.MeanAvgWeight)
	fmt.Fprintf(b, "Gini coefficient:           %.3f\n", g.Gini)
	if sum.ExcludedRounds > 0 {
		fmt.Fprintf(b, "Excluded rounds:            %d (below threshold)\n", sum.ExcludedRounds)
	}

	section(b, ruleWidth, fmt.Sprintf("DECOMPOSING THE GAP: %.0f theoretical -> %.0f observed",
		g.TheoreticalVoters, g.TotalVoters))
	fmt.Fprintf(b, "\nTotal gap: %.1f - %.1f = %.1f voters\n\n", g.TheoreticalVoters, g.TotalVoters, g.TotalGap())
	fmt.Fprintf(b, "1. THRESHOLD TERMINATION EFFECT\n")
	fmt.Fprintf(b, "   Without termination: %.1f voters\n", g.TheoreticalVoters)
	fmt.Fprintf(b, "   With uniform termination: %.1f voters\n", g.UniformVoters)
	fmt.Fprintf(b, "   Reduction: %.1f voters (%.1f%%)\n\n", g.ThresholdEffect, g.ThresholdPercent)
	fmt.Fprintf(b, "2. WHALE CONCENTRATION EFFECT\n")
	fmt.Fprintf(b, "   Uniform to threshold: %.1f voters\n", g.UniformVoters)
	fmt.Fprintf(b, "   Whales-first to threshold: %.1f voters\n", g.WhaleFirstVoters)
	fmt.Fprintf(b, "   Reduction: %.1f voters (%.1f%%)\n\n", g.WhaleEffect, g.WhalePercent)
	fmt.Fprintf(b, "3. VOTE ARRIVAL (observed > threshold)\n")
	fmt.Fprintf(b, "   Voters to threshold: %.1f\n", g.WhaleFirstVoters)
	fmt.Fprintf(b, "   Voters observed: %.1f\n", g.TotalVoters)
	fmt.Fprintf(b, "   Overshoot: %.1f voters\n", g.OvershootEffect)

	section(b, ruleWidth, "SUMMARY TABLE")
	fmt.Fprintf(b, "\n| %-30s | %8s | %9s | %10s |\n", "Stage", "Voters", "Change", "Cumulative")
	fmt.Fprintf(b, "|%s|%s|%s|%s|\n", strings.Repeat("-", 32), strings.Repeat("-", 10),
		strings.Repeat("-", 11), strings.Repeat("-", 12))
	for _, r := range s.Table {
		change, cum := "n/a", "n/a"
		if r.HasChange {
			change = fmt.Sprintf("%+.0f", signedChange(r))
			cum = fmt.Sprintf("%.0f%%", r.Cumulative)
		}
		fmt.Fprintf(b, "| %-30s | %8.0f | %9s | %10s |\n", r.Stage, r.Voters, change, cum)
	}

	section(b, ruleWidth, "MATHEMATICAL FORMULAS")
	fmt.Fprintf(b, "\nLet:\n")
	fmt.Fprintf(b, "  T = threshold = %d\n", s.Params.Threshold)
	fmt.Fprintf(b, "  N = theoretical unique voters = %.1f\n", g.TheoreticalVoters)
	fmt.Fprintf(b, "  C = committee size = %d\n", s.Params.CommitteeSize)
	fmt.Fprintf(b, "  w_uniform = C/N = %.2f\n", g.UniformWeight)
	fmt.Fprintf(b, "  w_observed = %.2f\n", g.ObservedAvgWeight)
	fmt.Fprintf(b, "  G = Gini coefficient = %.3f\n\n", g.Gini)
	fmt.Fprintf(b, "Uniform baseline voters:\n")
	fmt.Fprintf(b, "  V_uniform = T / w_uniform = %d / %.2f = %.1f\n\n", s.Params.Threshold, g.UniformWeight, g.UniformVoters)
	fmt.Fprintf(b, "Whale reduction factor:\n")
	fmt.Fprintf(b, "  rho = V_whale / V_uniform = %.1f / %.1f = %.3f\n\n", g.WhaleFirstVoters, g.UniformVoters, g.Rho)
	fmt.Fprintf(b, "Whale savings:\n")
	fmt.Fprintf(b, "  dV = V_uniform - V_whale = %.1f voters/round\n\n", g.Savings())
	fmt.Fprintf(b, "Percentage impact:\n")
	fmt.Fprintf(b, "  (1 - rho) x 100 = %.1f%%\n", (1-g.Rho)*100)

	section(b, ruleWidth, "VALIDATION")
	fmt.Fprintf(b, "\n| %-25s | %8s | %9s | %-5s |\n", "Metric", "Model", "Empirical", "Match")
	fmt.Fprintf(b, "|%s|%s|%s|%s|\n", strings.Repeat("-", 27), strings.Repeat("-", 10),
		strings.Repeat("-", 11), strings.Repeat("-", 7))
	for _, c := range s.Checks {
		match := "-"
		if c.HasEmpirical {
			match = "no"
			if c.Match {
				match = "yes"
			}
		}
		fmt.Fprintf(b, "| %-25s | %8.1f | %9s | %-5s |\n",
			c.Metric, c.Model, orNA("%.1f", c.Empirical, c.HasEmpirical), match)
	}
	fmt.Fprintf(b, "\nThe model accounts for %.1f%% of the gap from theory.\n", g.CumulativeReduction(g.WhaleFirstVoters))
	if g.LateVoters > 0 {
		fmt.Fprintf(b, "Late arrivals (%.0f/round) explain why observed (%.0f) > threshold-to-reach (%.0f).\n",
			g.LateVoters, g.TotalVoters, g.WhaleFirstVoters)
	}

	total := g.CumulativeReduction(g.WhaleFirstVoters)
	threshold := g.CumulativeReduction(g.UniformVoters)
	section(b, ruleWidth, "EFFICIENCY INTERPRETATION")
	fmt.Fprintf(b, "\nWhale concentration cuts the voters needed by a further %.1f%%\n", g.WhalePercent)
	fmt.Fprintf(b, "beyond what threshold termination alone achieves.\n\n")
	fmt.Fprintf(b, "Combined effect:\n")
	fmt.Fprintf(b, "  Theoretical: %.1f voters\n", g.TheoreticalVoters)
	fmt.Fprintf(b, "  Observed: %.1f voters (to threshold)\n", g.WhaleFirstVoters)
	fmt.Fprintf(b, "  Total reduction: %.1f%%\n\n", total)
	fmt.Fprintf(b, "Of this %.1f%% reduction:\n", total)
	fmt.Fprintf(b, "  - Threshold termination contributes: %.1f%%\n", threshold)
	fmt.Fprintf(b, "  - Whale concentration contributes: %.1f%%\n", total-threshold)

	for _, w := range g.Warnings {
		fmt.Fprintf(b, "\nWARNING: %s\n", w)
	}
}

// signedChange shows modeled stages as reductions and observed stages as
// increases.
func signedChange(r decomposition.Row) float64 {
	switch r.Stage {
	case decomposition.StageThreshold, decomposition.StageWhale:
		return -r.Change
	}
	return r.Change
}

func renderComparison(b *strings.Builder, steps []StepAnalysis) {
	titles := make([]string, len(steps))
	for i, s := range steps {
		titles[i] = strings.ToUpper(s.Params.Step.String())
	}
	section(b, ruleWidth, "COMPARISON: "+strings.Join(titles, " vs "))

	b.WriteString("\n")
	fmt.Fprintf(b, "%-36s", "")
	for _, s := range steps {
		fmt.Fprintf(b, "%12s", s.Params.Step.Title())
	}
	b.WriteString("\n")

	row := func(label string, f func(StepAnalysis) string) {
		fmt.Fprintf(b, "%-36s", label)
		for _, s := range steps {
			fmt.Fprintf(b, "%12s", f(s))
		}
		b.WriteString("\n")
	}
	row("Theoretical voters:", func(s StepAnalysis) string { return fmt.Sprintf("%.0f", s.Gap.TheoreticalVoters) })
	row("Observed voters:", func(s StepAnalysis) string { return fmt.Sprintf("%.0f", s.Gap.TotalVoters) })
	row("Ratio (observed/theory):", func(s StepAnalysis) string {
		return fmt.Sprintf("%.2fx", s.Gap.TotalVoters/s.Gap.TheoreticalVoters)
	})
	row("Voters to threshold (whale-first):", func(s StepAnalysis) string { return fmt.Sprintf("%.0f", s.Gap.WhaleFirstVoters) })
	row("Uniform baseline:", func(s StepAnalysis) string { return fmt.Sprintf("%.0f", s.Gap.UniformVoters) })
	row("Whale reduction:", func(s StepAnalysis) string { return fmt.Sprintf("%.1f%%", s.Gap.WhalePercent) })
	row("Gini coefficient:", func(s StepAnalysis) string { return fmt.Sprintf("%.3f", s.Gap.Gini) })
	row("Overshoot (late arrivals):", func(s StepAnalysis) string { return fmt.Sprintf("%.0f", s.Gap.OvershootEffect) })
}
