// Package simulation runs Monte Carlo trials of stake-weighted committee
// sortition and measures how many voters are needed to reach a threshold.
//
// A trial draws a Bernoulli selection event for every account (with the
// closed-form selection probability from package sortition), samples a weight
// for each selected account through a pluggable sampler.WeightSampler, shuffles
// the selected weights into a uniformly random arrival order and counts voters
// until the cumulative weight reaches the threshold.
//
// Trials are independent. With Workers > 1 they are split across goroutines,
// each using its own random stream derived from the scenario seed, and the
// per-worker samples are concatenated in worker order before aggregation, so a
// fixed (seed, workers) pair always reproduces the same result.
//
// Usage:
//
//	sim := simulation.NewSimulator(&sampler.Calibrated{}, simulation.Options{})
//	res, err := sim.Run(ctx, simulation.Scenario{
//	    Stakes:     dist.Stakes(),
//	    TotalStake: dist.TotalStake(),
//	    Params:     cfg.Consensus.Params(constants.StepCert),
//	    Trials:     1000,
//	    Seed:       42,
//	})
//
// The Assert* helpers check the simulator's invariants from tests.
package simulation
