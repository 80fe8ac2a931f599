package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/quorumlab/internal/config"
	"github.com/nvandessel/quorumlab/internal/constants"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage quorumlab configuration",
		Long: `View and initialize quorumlab configuration.

Configuration is read from ~/.quorumlab/config.yaml (or --config) and then
overridden by QUORUMLAB_* environment variables.

Examples:
  quorumlab config list                      # Show effective settings
  quorumlab config get consensus.cert.threshold
  quorumlab config init                      # Write a default config file`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			fmt.Fprintln(out, "Consensus Settings:")
			for _, step := range constants.AllSteps {
				p := cfg.Consensus.Params(step)
				fmt.Fprintf(out, "  consensus.%s:  committee_size=%d threshold=%d\n", step, p.CommitteeSize, p.Threshold)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Simulation Settings:")
			fmt.Fprintf(out, "  simulation.trials:            %d\n", cfg.Simulation.Trials)
			fmt.Fprintf(out, "  simulation.seed:              %s\n", seedString(cfg.Simulation.Seed))
			fmt.Fprintf(out, "  simulation.workers:           %d\n", cfg.Simulation.Workers)
			fmt.Fprintf(out, "  simulation.sampler:           %s\n", cfg.Simulation.Sampler)
			fmt.Fprintf(out, "  simulation.unreached_policy:  %s\n", valueOrDefault(cfg.Simulation.UnreachedPolicy, "retain"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Analysis References:")
			for _, step := range constants.AllSteps {
				ref := cfg.Analysis.Reference(step)
				fmt.Fprintf(out, "  analysis.%s:  theoretical_unique_voters=%g reference_ratio=%g reference_voters=%g\n",
					step, ref.TheoreticalUniqueVoters, ref.ReferenceRatio, ref.ReferenceVoters)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Profile Settings:")
			fmt.Fprintf(out, "  profile.tier_bounds:   %v\n", cfg.Profile.TierBounds)
			fmt.Fprintf(out, "  profile.top_accounts:  %d\n", cfg.Profile.TopAccounts)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging and Storage:")
			fmt.Fprintf(out, "  logging.level:        %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintf(out, "  storage.data_dir:     %s\n", cfg.Storage.DataDir)
			fmt.Fprintf(out, "  storage.record_runs:  %v\n", cfg.Storage.RecordRuns)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			force, _ := cmd.Flags().GetBool("force")

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := saveConfig(path, config.Default()); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "initialized",
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (interface{}, bool) {
	for _, step := range constants.AllSteps {
		p := cfg.Consensus.Params(step)
		ref := cfg.Analysis.Reference(step)
		switch key {
		case "consensus." + step.String() + ".committee_size":
			return p.CommitteeSize, true
		case "consensus." + step.String() + ".threshold":
			return p.Threshold, true
		case "analysis." + step.String() + ".theoretical_unique_voters":
			return ref.TheoreticalUniqueVoters, true
		case "analysis." + step.String() + ".reference_ratio":
			return ref.ReferenceRatio, true
		case "analysis." + step.String() + ".reference_voters":
			return ref.ReferenceVoters, true
		}
	}

	switch key {
	case "simulation.trials":
		return cfg.Simulation.Trials, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.sampler":
		return cfg.Simulation.Sampler, true
	case "simulation.unreached_policy":
		return cfg.Simulation.UnreachedPolicy, true
	case "profile.tier_bounds":
		return cfg.Profile.TierBounds, true
	case "profile.top_accounts":
		return cfg.Profile.TopAccounts, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "storage.data_dir":
		return cfg.Storage.DataDir, true
	case "storage.record_runs":
		return cfg.Storage.RecordRuns, true
	default:
		return nil, false
	}
}

// configFilePath returns --config or ~/.quorumlab/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, config.DirName, "config.yaml"), nil
}

// saveConfig writes cfg as YAML to path.
func saveConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func seedString(seed uint64) string {
	if seed == 0 {
		return "0 (entropy)"
	}
	return fmt.Sprint(seed)
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
