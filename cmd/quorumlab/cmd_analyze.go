package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/decomposition"
	"github.com/nvandessel/quorumlab/internal/ingest"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/pathutil"
	"github.com/nvandessel/quorumlab/internal/report"
	"github.com/nvandessel/quorumlab/internal/rounds"
	"github.com/nvandessel/quorumlab/internal/sortition"
	"github.com/nvandessel/quorumlab/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <votes.csv>",
		Short: "Measure voters to threshold in a vote log and decompose the gap",
		Long: `Analyze recorded votes round by round: count the voters needed to reach the
threshold in whale-first, arrival and log order, then decompose the gap between the
theoretical unique voter count and the observed one.

The theoretical count comes from --stakes when given, otherwise from
analysis.<step>.theoretical_unique_voters in the config.

The vote file needs "sender", "step", "round" and "credential_weight" columns;
"timestamp_unix_ns" and "is_late" are optional.

Examples:
  quorumlab analyze votes.csv
  quorumlab analyze votes.csv --stakes stakes.csv --steps cert
  quorumlab analyze votes.csv --json`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringSlice("steps", []string{"soft", "cert"}, "Steps to analyze")
	cmd.Flags().String("stakes", "", "Stake file used to compute the theoretical unique voters")
	cmd.Flags().String("metrics", "", "Write analysis metrics to a Prometheus textfile")

	return cmd
}

type analyzeParams struct {
	VoteFile  string                       `json:"vote_file"`
	StakeFile string                       `json:"stake_file,omitempty"`
	Steps     []constants.Step             `json:"steps"`
	Params    []models.ConsensusParameters `json:"params"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := cmd.Context()

	names, _ := cmd.Flags().GetStringSlice("steps")
	steps, err := parseSteps(names)
	if err != nil {
		return err
	}

	// theoretical returns N for a step.
	theoretical := func(p models.ConsensusParameters) (float64, error) {
		if n := env.cfg.Analysis.Reference(p.Step).TheoreticalUniqueVoters; n > 0 {
			return n, nil
		}
		return 0, &models.DomainError{
			Param:  "analysis." + p.Step.String() + ".theoretical_unique_voters",
			Reason: "not configured; pass --stakes",
		}
	}
	stakeFile, _ := cmd.Flags().GetString("stakes")
	if stakeFile != "" {
		dist, err := ingest.LoadStakes(stakeFile)
		if err != nil {
			return err
		}
		env.logger.Info("loaded stakes", "file", pathutil.RedactPath(stakeFile), "accounts", dist.Len())
		stakes := dist.Stakes()
		theoretical = func(p models.ConsensusParameters) (float64, error) {
			model, err := sortition.NewModelFor(p, dist.TotalStake())
			if err != nil {
				return 0, err
			}
			return model.ExpectedUniqueVoters(stakes), nil
		}
	}

	logs, err := ingest.LoadVotes(args[0], steps...)
	if err != nil {
		return err
	}

	out := &report.Analysis{File: args[0]}
	params := make([]models.ConsensusParameters, 0, len(steps))
	for _, step := range steps {
		p := env.cfg.Consensus.Params(step)
		params = append(params, p)

		n, err := theoretical(p)
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}

		analyzer, err := rounds.NewAnalyzer(p, rounds.Options{
			Metrics: env.metrics.Analysis,
			Trace:   env.trace,
			Logger:  env.logger,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		summary, err := analyzer.Analyze(logs[step])
		if errors.Is(err, models.ErrInsufficientData) && len(steps) > 1 {
			env.logger.Warn("skipping step without qualifying rounds", "step", step, "error", err)
			continue
		}
		if err != nil {
			return err
		}

		gap, err := decomposition.Decompose(decomposition.InputsFromSummary(p, n, summary))
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		if gap.OvershootEffect < 0 {
			env.trace.OvershootNegative(step.String(), gap.OvershootEffect)
		}
		for _, w := range gap.Warnings {
			env.logger.Warn(w, "step", step)
		}
		out.Steps = append(out.Steps, report.NewStepAnalysis(p, summary, gap))
	}
	if len(out.Steps) == 0 {
		return fmt.Errorf("no step has a round reaching its threshold: %w", models.ErrInsufficientData)
	}

	metricsPath, _ := cmd.Flags().GetString("metrics")
	if err := env.writeMetrics(metricsPath); err != nil {
		return err
	}

	var recordStep constants.Step
	if len(out.Steps) == 1 {
		recordStep = out.Steps[0].Params.Step
	}
	env.record(ctx, store.KindAnalyze, recordStep, analyzeParams{
		VoteFile:  args[0],
		StakeFile: stakeFile,
		Steps:     steps,
		Params:    params,
	}, out)

	if env.jsonOut {
		return report.WriteJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.RenderAnalysis(out))
	return nil
}
