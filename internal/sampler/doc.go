// Package sampler draws credential weights for accounts that sortition selected.
//
// The simulator only depends on the WeightSampler interface. Two implementations
// are provided:
//
//   - Calibrated, the default. A piecewise approximation (normal, Poisson, small
//     count) whose regime boundaries at expected weight 5 and 30 and minimum of one
//     were calibrated against observed rounds. It is an approximation of the
//     conditional binomial, not ground truth.
//   - Exact, which samples the zero-truncated binomial using gonum's distuv.Binomial.
//
// Randomness is always passed in explicitly. Use New for a seeded generator and
// Stream to derive independent per-worker generators from one seed.
package sampler
