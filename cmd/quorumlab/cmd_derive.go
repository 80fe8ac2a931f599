package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/quorumlab/internal/columnar"
	"github.com/nvandessel/quorumlab/internal/config"
	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/ingest"
	"github.com/nvandessel/quorumlab/internal/pathutil"
	"github.com/nvandessel/quorumlab/internal/report"
	"github.com/nvandessel/quorumlab/internal/sampler"
	"github.com/nvandessel/quorumlab/internal/simulation"
	"github.com/nvandessel/quorumlab/internal/sortition"
	"github.com/nvandessel/quorumlab/internal/store"
)

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <stakes.csv>",
		Short: "Derive expected voter counts from a stake distribution",
		Long: `Load a stake distribution and, for each step, compute the theoretical
expected unique voters of a full committee and simulate how many voters are
needed to reach the step's threshold.

The stake file needs "Address" and "Balance" columns; balances may contain
thousands separators.

Examples:
  quorumlab derive stakes.csv
  quorumlab derive stakes.csv --steps cert --trials 5000 --seed 7 --workers 4
  quorumlab derive stakes.csv --export-samples samples.arrow --json`,
		Args: cobra.ExactArgs(1),
		RunE: runDerive,
	}

	cmd.Flags().StringSlice("steps", []string{"soft", "cert", "next"}, "Steps to derive")
	cmd.Flags().Int("trials", constants.DefaultTrials, "Monte Carlo trials per step (overrides config)")
	cmd.Flags().Uint64("seed", 0, "Random seed, 0 for entropy (overrides config)")
	cmd.Flags().Int("workers", 1, "Concurrent simulation workers (overrides config)")
	cmd.Flags().String("sampler", sampler.NameCalibrated, "Weight sampler: calibrated or exact (overrides config)")
	cmd.Flags().String("policy", string(simulation.PolicyRetain), "Unreached trial policy: retain or exclude (overrides config)")
	cmd.Flags().String("export-samples", "", "Write per-trial samples to an Arrow IPC file")
	cmd.Flags().String("metrics", "", "Write simulation metrics to a Prometheus textfile")

	return cmd
}

// applySimulationFlags copies explicitly set flags over the config values.
func applySimulationFlags(cmd *cobra.Command, sc *config.SimulationConfig) {
	if cmd.Flags().Changed("trials") {
		sc.Trials, _ = cmd.Flags().GetInt("trials")
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if cmd.Flags().Changed("workers") {
		sc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("sampler") {
		sc.Sampler, _ = cmd.Flags().GetString("sampler")
	}
	if cmd.Flags().Changed("policy") {
		sc.UnreachedPolicy, _ = cmd.Flags().GetString("policy")
	}
}

// parseSteps parses step names, keeping their order and dropping repeats.
func parseSteps(names []string) ([]constants.Step, error) {
	var steps []constants.Step
	seen := make(map[constants.Step]bool)
	for _, n := range names {
		step, err := constants.ParseStep(n)
		if err != nil {
			return nil, err
		}
		if !seen[step] {
			seen[step] = true
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps selected")
	}
	return steps, nil
}

// deriveParams is what a recorded derive run was asked to do.
type deriveParams struct {
	StakeFile string                  `json:"stake_file"`
	Steps     []constants.Step        `json:"steps"`
	Sim       config.SimulationConfig `json:"simulation"`
	Consensus config.ConsensusConfig  `json:"consensus"`
}

func runDerive(cmd *cobra.Command, args []string) error {
	env, err := newAppEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	cfg := env.cfg
	applySimulationFlags(cmd, &cfg.Simulation)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	names, _ := cmd.Flags().GetStringSlice("steps")
	steps, err := parseSteps(names)
	if err != nil {
		return err
	}
	policy, err := simulation.ParseUnreachedPolicy(cfg.Simulation.UnreachedPolicy)
	if err != nil {
		return err
	}
	ws, err := sampler.ByName(cfg.Simulation.Sampler, sampler.Observers{env.metrics.Simulation, env.trace})
	if err != nil {
		return err
	}

	dist, err := ingest.LoadStakes(args[0])
	if err != nil {
		return err
	}
	env.logger.Info("loaded stakes", "file", pathutil.RedactPath(args[0]), "accounts", dist.Len())

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = sampler.EntropySeed()
	}
	cfg.Simulation.Seed = seed
	env.logger.Info("simulation seed", "seed", seed)

	stakes := dist.Stakes()
	out := &report.Derivation{
		Stakes: report.StakeSummary{
			File:          args[0],
			Accounts:      dist.Len(),
			TotalStake:    dist.TotalStake(),
			Concentration: sortition.Concentration(stakes, constants.ConcentrationShares),
		},
	}

	sim := simulation.NewSimulator(ws, simulation.Options{
		Metrics: env.metrics.Simulation,
		Trace:   env.trace,
		Logger:  env.logger,
	})
	for _, step := range steps {
		params := cfg.Consensus.Params(step)
		model, err := sortition.NewModelFor(params, dist.TotalStake())
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		theory := model.ExpectedUniqueVoters(stakes)

		env.logger.Info("simulating", "step", step, "trials", cfg.Simulation.Trials, "workers", cfg.Simulation.Workers)
		res, err := sim.Run(ctx, simulation.Scenario{
			Stakes:     stakes,
			TotalStake: dist.TotalStake(),
			Params:     params,
			Trials:     cfg.Simulation.Trials,
			Seed:       seed,
			Workers:    cfg.Simulation.Workers,
			Policy:     policy,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}

		ref := cfg.Analysis.Reference(step)
		out.Steps = append(out.Steps, report.StepDerivation{
			Params:            params,
			TheoreticalVoters: theory,
			Simulation:        res,
			RatioToTheory:     res.RatioToTheory(theory),
			Reference:         report.Reference{Ratio: ref.ReferenceRatio, Voters: ref.ReferenceVoters},
		})
	}

	if path, _ := cmd.Flags().GetString("export-samples"); path != "" {
		if err := exportSamples(path, ws.Name(), policy, cfg.Simulation, out); err != nil {
			return err
		}
		env.logger.Info("samples written", "path", pathutil.RedactPath(path))
	}
	metricsPath, _ := cmd.Flags().GetString("metrics")
	if err := env.writeMetrics(metricsPath); err != nil {
		return err
	}

	var recordStep constants.Step
	if len(steps) == 1 {
		recordStep = steps[0]
	}
	env.record(ctx, store.KindDerive, recordStep, deriveParams{
		StakeFile: args[0],
		Steps:     steps,
		Sim:       cfg.Simulation,
		Consensus: cfg.Consensus,
	}, out)

	if env.jsonOut {
		return report.WriteJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.RenderDerivation(out))
	return nil
}

func exportSamples(path, samplerName string, policy simulation.UnreachedPolicy, sc config.SimulationConfig, d *report.Derivation) error {
	out, err := pathutil.OutputPath(path)
	if err != nil {
		return err
	}
	steps := make([]columnar.StepSamples, 0, len(d.Steps))
	for _, s := range d.Steps {
		steps = append(steps, columnar.StepSamples{Step: s.Params.Step, Samples: s.Simulation.Samples})
	}
	h := columnar.Header{
		Sampler: samplerName,
		Seed:    sc.Seed,
		Workers: sc.Workers,
		Policy:  string(policy),
	}
	return columnar.WriteSamplesFile(out, h, steps)
}
