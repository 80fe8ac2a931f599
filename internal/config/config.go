// Package config provides unified configuration loading for quorumlab.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/sampler"
	"github.com/nvandessel/quorumlab/internal/simulation"
	"github.com/nvandessel/quorumlab/internal/tiering"
)

// DirName is the default data directory name under the user's home.
const DirName = ".quorumlab"

// Config contains all quorumlab configuration settings.
type Config struct {
	// Consensus holds committee size and threshold per step.
	Consensus ConsensusConfig `json:"consensus" yaml:"consensus"`

	// Simulation configures the Monte Carlo committee simulator.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Analysis holds per-step reference values used by reports.
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Profile configures the stake tier vote profile.
	Profile ProfileConfig `json:"profile" yaml:"profile"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Storage configures where run history and traces are written.
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StepParams is the committee size and threshold of one step.
type StepParams struct {
	CommitteeSize int `json:"committee_size" yaml:"committee_size"`
	Threshold     int `json:"threshold" yaml:"threshold"`
}

// ConsensusConfig holds one StepParams per step.
type ConsensusConfig struct {
	Soft StepParams `json:"soft" yaml:"soft"`
	Cert StepParams `json:"cert" yaml:"cert"`
	Next StepParams `json:"next" yaml:"next"`
}

// Params returns the consensus parameters of step.
func (c ConsensusConfig) Params(step constants.Step) models.ConsensusParameters {
	var p StepParams
	switch step {
	case constants.StepSoft:
		p = c.Soft
	case constants.StepCert:
		p = c.Cert
	case constants.StepNext:
		p = c.Next
	}
	return models.ConsensusParameters{Step: step, CommitteeSize: p.CommitteeSize, Threshold: p.Threshold}
}

// SimulationConfig configures the committee simulator.
type SimulationConfig struct {
	// Trials is the number of Monte Carlo trials per step.
	Trials int `json:"trials" yaml:"trials"`

	// Seed fixes the random streams. 0 draws a fresh seed per run; the seed
	// used is logged and recorded with the run.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers is the number of goroutines trials are split across.
	Workers int `json:"workers" yaml:"workers"`

	// Sampler selects the weight sampler: "calibrated" (default) or "exact".
	Sampler string `json:"sampler" yaml:"sampler"`

	// UnreachedPolicy decides whether trials that never reach the threshold
	// are kept with all selected voters ("retain") or dropped ("exclude").
	UnreachedPolicy string `json:"unreached_policy" yaml:"unreached_policy"`
}

// StepReference holds optional comparison values for one step. Zero means unset.
type StepReference struct {
	// TheoreticalUniqueVoters is N, used by analyze when no stake file is given.
	TheoreticalUniqueVoters float64 `json:"theoretical_unique_voters,omitempty" yaml:"theoretical_unique_voters,omitempty"`

	// ReferenceRatio is a published observed/theory ratio shown next to the
	// simulated ratio.
	ReferenceRatio float64 `json:"reference_ratio,omitempty" yaml:"reference_ratio,omitempty"`

	// ReferenceVoters is a published empirical voter count.
	ReferenceVoters float64 `json:"reference_voters,omitempty" yaml:"reference_voters,omitempty"`
}

// AnalysisConfig holds a StepReference per step.
type AnalysisConfig struct {
	Soft StepReference `json:"soft" yaml:"soft"`
	Cert StepReference `json:"cert" yaml:"cert"`
	Next StepReference `json:"next" yaml:"next"`
}

// Reference returns the reference values of step.
func (c AnalysisConfig) Reference(step constants.Step) StepReference {
	switch step {
	case constants.StepSoft:
		return c.Soft
	case constants.StepCert:
		return c.Cert
	case constants.StepNext:
		return c.Next
	}
	return StepReference{}
}

// ProfileConfig configures the stake tier profile.
type ProfileConfig struct {
	// TierBounds are the inclusive upper ranks of each tier.
	TierBounds []int `json:"tier_bounds" yaml:"tier_bounds"`

	// TopAccounts is how many top accounts the profile lists.
	TopAccounts int `json:"top_accounts" yaml:"top_accounts"`
}

// LoggingConfig configures quorumlab's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables trace events in <data_dir>/trace.jsonl.
	Level string `json:"level" yaml:"level"`
}

// StorageConfig configures persistent output.
type StorageConfig struct {
	// DataDir holds the run database and trace log. Default: ~/.quorumlab.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RecordRuns stores every derive and analyze result in the run database.
	RecordRuns bool `json:"record_runs" yaml:"record_runs"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	dataDir := DirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, DirName)
	}
	return &Config{
		Consensus: ConsensusConfig{
			Soft: StepParams{CommitteeSize: constants.DefaultSoftCommitteeSize, Threshold: constants.DefaultSoftThreshold},
			Cert: StepParams{CommitteeSize: constants.DefaultCertCommitteeSize, Threshold: constants.DefaultCertThreshold},
			Next: StepParams{CommitteeSize: constants.DefaultNextCommitteeSize, Threshold: constants.DefaultNextThreshold},
		},
		Simulation: SimulationConfig{
			Trials:          constants.DefaultTrials,
			Seed:            0,
			Workers:         1,
			Sampler:         sampler.NameCalibrated,
			UnreachedPolicy: string(simulation.PolicyRetain),
		},
		Analysis: AnalysisConfig{
			Soft: StepReference{TheoreticalUniqueVoters: 354, ReferenceRatio: 0.871, ReferenceVoters: 308},
			Cert: StepReference{TheoreticalUniqueVoters: 233, ReferenceRatio: 0.627, ReferenceVoters: 147},
		},
		Profile: ProfileConfig{
			TierBounds:  append([]int(nil), constants.TierUpperBounds...),
			TopAccounts: constants.TopAccountsShown,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			RecordRuns: true,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.quorumlab/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, DirName, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads configuration from path when non-empty, otherwise from the
// default locations. Environment overrides apply in both cases.
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.DataDir = expandHome(expandEnvVars(config.Storage.DataDir))

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	for _, step := range constants.AllSteps {
		if err := c.Consensus.Params(step).Validate(); err != nil {
			return fmt.Errorf("consensus.%s: %w", step, err)
		}
	}

	if c.Simulation.Trials < 0 {
		return fmt.Errorf("simulation.trials must be non-negative, got %d", c.Simulation.Trials)
	}
	if c.Simulation.Workers < 1 {
		return fmt.Errorf("simulation.workers must be at least 1, got %d", c.Simulation.Workers)
	}
	if _, err := sampler.ByName(c.Simulation.Sampler, nil); err != nil {
		return fmt.Errorf("simulation.sampler: %w", err)
	}
	if _, err := simulation.ParseUnreachedPolicy(c.Simulation.UnreachedPolicy); err != nil {
		return fmt.Errorf("simulation.unreached_policy: %w", err)
	}

	for _, step := range constants.AllSteps {
		ref := c.Analysis.Reference(step)
		if ref.TheoreticalUniqueVoters < 0 || ref.ReferenceRatio < 0 || ref.ReferenceVoters < 0 {
			return fmt.Errorf("analysis.%s: reference values must be non-negative", step)
		}
	}

	if err := (tiering.TierConfig{UpperBounds: c.Profile.TierBounds}).Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if c.Profile.TopAccounts < 0 {
		return fmt.Errorf("profile.top_accounts must be non-negative, got %d", c.Profile.TopAccounts)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	overrideInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	overrideInt("QUORUMLAB_SOFT_COMMITTEE_SIZE", &config.Consensus.Soft.CommitteeSize)
	overrideInt("QUORUMLAB_SOFT_THRESHOLD", &config.Consensus.Soft.Threshold)
	overrideInt("QUORUMLAB_CERT_COMMITTEE_SIZE", &config.Consensus.Cert.CommitteeSize)
	overrideInt("QUORUMLAB_CERT_THRESHOLD", &config.Consensus.Cert.Threshold)
	overrideInt("QUORUMLAB_NEXT_COMMITTEE_SIZE", &config.Consensus.Next.CommitteeSize)
	overrideInt("QUORUMLAB_NEXT_THRESHOLD", &config.Consensus.Next.Threshold)
	overrideInt("QUORUMLAB_TRIALS", &config.Simulation.Trials)
	overrideInt("QUORUMLAB_WORKERS", &config.Simulation.Workers)

	if v := os.Getenv("QUORUMLAB_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}

	if v := os.Getenv("QUORUMLAB_SAMPLER"); v != "" {
		config.Simulation.Sampler = v
	}

	if v := os.Getenv("QUORUMLAB_UNREACHED_POLICY"); v != "" {
		config.Simulation.UnreachedPolicy = v
	}

	if v := os.Getenv("QUORUMLAB_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("QUORUMLAB_DATA_DIR"); v != "" {
		config.Storage.DataDir = expandHome(v)
	}

	if v := os.Getenv("QUORUMLAB_RECORD_RUNS"); v != "" {
		config.Storage.RecordRuns = v == "true" || v == "1"
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
