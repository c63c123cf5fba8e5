package main

import (
	"math"

	"bitbucket.org/Davydov/gonuts/mcmc"
	"bitbucket.org/Davydov/gonuts/model"
	"bitbucket.org/Davydov/gonuts/optimize"
)

// RunSummary is storing gonuts run summary information.
type RunSummary struct {
	// Version stores gonuts version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// RunID identifies the samples stored in the database.
	RunID string `json:"runID,omitempty"`
	// Settings are the effective sampler settings.
	Settings model.Settings `json:"settings"`
	// Optimizer is the summary of the starting point search.
	Optimizer *optimize.Summary `json:"optimizer,omitempty"`
	// Sampler is the sampler summary.
	Sampler mcmc.Summary `json:"sampler"`
	// Posterior summarizes monitored variables.
	Posterior []VariableSummary `json:"posterior"`
	// Time is the total running time in seconds.
	Time float64 `json:"time"`
}

// VariableSummary is the posterior summary of one variable.
type VariableSummary struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	// MeanLow and MeanHigh are the 95% confidence interval of the
	// posterior mean.
	MeanLow  float64 `json:"meanLow"`
	MeanHigh float64 `json:"meanHigh"`
}

// posteriorSummary computes the summary of the monitored variables
// skipping burnin samples.
func posteriorSummary(n *model.Network, samples *mcmc.Samples, monitored []mcmc.VariableID, burnin int) []VariableSummary {
	post := samples
	if burnin > 0 && burnin < samples.Len() {
		post = mcmc.NewSamples()
		for _, s := range samples.All()[burnin:] {
			post.Add(s)
		}
	}
	res := make([]VariableSummary, 0, len(monitored))
	for _, id := range monitored {
		lo, hi := post.MeanInterval(id, 0.95)
		vs := VariableSummary{
			Name:     n.Name(id),
			Mean:     finite(post.Mean(id)),
			SD:       finite(post.SD(id)),
			MeanLow:  finite(lo),
			MeanHigh: finite(hi),
		}
		log.Noticef("%s: mean=%.6f sd=%.6f 95%%CI(mean)=[%.6f, %.6f]", vs.Name, vs.Mean, vs.SD, lo, hi)
		res = append(res, vs)
	}
	return res
}

// finite replaces NaN, which cannot be stored in JSON, with zero.
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
