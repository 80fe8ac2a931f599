package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/logging"
	"github.com/nvandessel/quorumlab/internal/metrics"
	"github.com/nvandessel/quorumlab/internal/models"
	"github.com/nvandessel/quorumlab/internal/sampler"
	"github.com/nvandessel/quorumlab/internal/sortition"
)

// Options wires optional observability into a Simulator. Zero values are safe.
type Options struct {
	Metrics *metrics.SimulationMetrics
	Trace   *logging.TraceLogger
	Logger  *slog.Logger
}

// Simulator runs scenarios with a fixed weight sampler.
type Simulator struct {
	sampler sampler.WeightSampler
	metrics *metrics.SimulationMetrics
	trace   *logging.TraceLogger
	logger  *slog.Logger
}

// NewSimulator creates a simulator. A nil sampler means the calibrated sampler.
func NewSimulator(ws sampler.WeightSampler, opts Options) *Simulator {
	if ws == nil {
		ws = &sampler.Calibrated{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Simulator{
		sampler: ws,
		metrics: opts.Metrics,
		trace:   opts.Trace,
		logger:  logger,
	}
}

// SamplerName returns the name of the configured weight sampler.
func (s *Simulator) SamplerName() string {
	return s.sampler.Name()
}

// Run executes the scenario's trials and aggregates the samples.
//
// Inputs are validated before any trial runs: the consensus parameters, a
// non-empty stake list, a positive total stake and a committee ratio in (0, 1).
// Trials == 0 yields a zero result with an empty sample list.
func (s *Simulator) Run(ctx context.Context, sc Scenario) (Result, error) {
	model, err := s.validate(sc)
	if err != nil {
		return Result{}, err
	}
	policy := sc.Policy
	if policy == "" {
		policy = PolicyRetain
	}
	workers := sc.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > sc.Trials && sc.Trials > 0 {
		workers = sc.Trials
	}

	step := sc.Params.Step.String()
	streams := func(w int) *rand.Rand { return sampler.DomainStream(sc.Seed, step, w) }
	return s.execute(ctx, sc, model, policy, workers, streams)
}

func (s *Simulator) execute(ctx context.Context, sc Scenario, model *sortition.Model, policy UnreachedPolicy, workers int, streams func(int) *rand.Rand) (Result, error) {
	res := Result{
		Samples: []int{},
		Trials:  sc.Trials,
		Policy:  string(policy),
		Sampler: s.sampler.Name(),
		Seed:    sc.Seed,
		Workers: workers,
	}
	if sc.Trials == 0 {
		return res, nil
	}

	j := &job{
		sim:       s,
		stakes:    sc.Stakes,
		probs:     model.SelectionProbabilities(sc.Stakes),
		ratio:     model.Ratio(),
		threshold: uint64(sc.Params.Threshold),
		step:      sc.Params.Step.String(),
		policy:    policy,
		trials:    sc.Trials,
	}

	s.logger.Debug("simulation started",
		"step", j.step,
		"accounts", len(sc.Stakes),
		"ratio", j.ratio,
		"expected_voters", model.ExpectedUniqueVoters(sc.Stakes),
		"trials", sc.Trials,
		"workers", workers,
		"sampler", s.sampler.Name(),
		"policy", string(policy),
	)

	parts := make([]workerResult, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * sc.Trials / workers
		hi := (w + 1) * sc.Trials / workers
		r := streams(w)
		g.Go(func() error {
			part, err := j.work(gctx, r, hi-lo)
			parts[w] = part
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for _, p := range parts {
		res.Samples = append(res.Samples, p.samples...)
		res.EmptyTrials += p.empty
		res.UnreachedTrials += p.unreached
	}
	res.Mean, res.Std = summarize(res.Samples)

	s.logger.Info("simulation finished",
		"step", j.step,
		"mean", res.Mean,
		"std", res.Std,
		"samples", len(res.Samples),
		"empty_trials", res.EmptyTrials,
		"unreached_trials", res.UnreachedTrials,
	)
	return res, nil
}

func (s *Simulator) validate(sc Scenario) (*sortition.Model, error) {
	if err := sc.Params.Validate(); err != nil {
		return nil, err
	}
	if len(sc.Stakes) == 0 {
		return nil, &models.DomainError{Param: "accounts", Reason: "no accounts"}
	}
	if sc.Trials < 0 {
		return nil, &models.DomainError{Param: "trials", Reason: fmt.Sprintf("must be non-negative, got %d", sc.Trials)}
	}
	if sc.Policy != "" && !sc.Policy.Valid() {
		return nil, &models.DomainError{Param: "unreached_policy", Reason: fmt.Sprintf("unknown policy %q", sc.Policy)}
	}
	return sortition.NewModelFor(sc.Params, sc.TotalStake)
}

// job holds the read-only inputs shared by all workers of one run.
type job struct {
	sim       *Simulator
	stakes    []float64
	probs     []float64
	ratio     float64
	threshold uint64
	step      string
	policy    UnreachedPolicy
	trials    int
	completed atomic.Int64
}

type workerResult struct {
	samples   []int
	empty     int
	unreached int
}

func (j *job) work(ctx context.Context, r *rand.Rand, n int) (workerResult, error) {
	ts := &trialState{r: r, sampler: j.sim.sampler}
	out := workerResult{samples: make([]int, 0, n)}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		o := ts.run(j.stakes, j.probs, j.ratio, j.threshold)

		switch {
		case o.empty:
			out.empty++
		case !o.reached:
			out.unreached++
			retained := j.policy == PolicyRetain
			if retained {
				out.samples = append(out.samples, o.voters)
			}
			j.sim.trace.TrialUnreached(j.step, o.selected, o.weight, retained)
		default:
			out.samples = append(out.samples, o.voters)
		}
		j.sim.metrics.ObserveTrial(j.step, o.voters, o.empty, !o.empty && !o.reached)

		if done := j.completed.Add(1); done%constants.ProgressInterval == 0 {
			j.sim.logger.Debug("simulation progress", "step", j.step, "trial", done, "trials", j.trials)
		}
	}
	return out, nil
}

// summarize returns the population mean and standard deviation.
func summarize(samples []int) (mean, std float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(samples))
	for i, v := range samples {
		xs[i] = float64(v)
	}
	return stat.PopMeanStdDev(xs, nil)
}

// SimulateVotersToThreshold runs trials sequentially on r with the calibrated
// sampler and the retain policy.
func SimulateVotersToThreshold(r *rand.Rand, stakes []float64, totalStake float64, committeeSize, threshold, trials int) (Result, error) {
	sim := NewSimulator(&sampler.Calibrated{}, Options{})
	sc := Scenario{
		Stakes:     stakes,
		TotalStake: totalStake,
		Params:     models.ConsensusParameters{CommitteeSize: committeeSize, Threshold: threshold},
		Trials:     trials,
		Policy:     PolicyRetain,
	}
	model, err := sim.validate(sc)
	if err != nil {
		return Result{}, err
	}
	return sim.execute(context.Background(), sc, model, PolicyRetain, 1, func(int) *rand.Rand { return r })
}
