package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/ingest"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/pathutil"
	"github.com/nvandessel/quorumlab/internal/report"
	"github.com/nvandessel/quorumlab/internal/store"
	"github.com/nvandessel/quorumlab/internal/tiering"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <stakes.csv> <votes.csv>",
		Short: "Break votes down by the sender's stake rank",
		Long: `Rank accounts by stake and report, per step, how many votes and how much
weight each rank tier contributed. Senders missing from the stake file count
toward the last tier.

Examples:
  quorumlab profile stakes.csv votes.csv
  quorumlab profile stakes.csv votes.csv --top 10 --json`,
		Args: cobra.ExactArgs(2),
		RunE: runProfile,
	}

	cmd.Flags().StringSlice("steps", []string{"soft", "cert"}, "Steps to profile")
	cmd.Flags().Int("top", constants.TopAccountsShown, "Top accounts to list (overrides config)")

	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	names, _ := cmd.Flags().GetStringSlice("steps")
	steps, err := parseSteps(names)
	if err != nil {
		return err
	}
	top := env.cfg.Profile.TopAccounts
	if cmd.Flags().Changed("top") {
		top, _ = cmd.Flags().GetInt("top")
	}
	if top < 0 {
		return fmt.Errorf("--top must be non-negative, got %d", top)
	}

	mapper, err := tiering.NewTierMapper(tiering.TierConfig{UpperBounds: env.cfg.Profile.TierBounds})
	if err != nil {
		return err
	}

	dist, err := ingest.LoadStakes(args[0])
	if err != nil {
		return err
	}
	env.logger.Info("loaded stakes", "file", pathutil.RedactPath(args[0]), "accounts", dist.Len())

	logs, err := ingest.LoadVotes(args[1], steps...)
	if err != nil {
		return err
	}
	ordered := make([]*models.VoteLog, 0, len(steps))
	for _, step := range steps {
		env.logger.Info("loaded votes", "step", step, "votes", logs[step].VoteCount())
		ordered = append(ordered, logs[step])
	}

	profile := tiering.NewProfiler(dist, mapper).Profile(ordered...)
	if n := len(profile.UnknownSenders); n > 0 {
		env.logger.Warn("senders missing from stake file", "count", n)
	}
	out := report.NewProfileReport(dist, profile, top)

	var recordStep constants.Step
	if len(steps) == 1 {
		recordStep = steps[0]
	}
	env.record(cmd.Context(), store.KindProfile, recordStep, map[string]any{
		"stake_file":  args[0],
		"vote_file":   args[1],
		"steps":       steps,
		"tier_bounds": env.cfg.Profile.TierBounds,
	}, out)

	if env.jsonOut {
		return report.WriteJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.RenderProfile(out))
	return nil
}
