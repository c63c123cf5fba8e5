package optimize

import (
	"fmt"
	"math"

	"bitbucket.org/Davydov/gonuts/mcmc"
)

// Annealer is simulated annealing with single-site normal proposals.
// The temperature is 1 for the first AnnealingSkip iterations and then
// decreases exponentially to 0.9^100.
type Annealer struct {
	BaseOptimizer
	AccPeriod int
	// AnnealingSkip is the number of iterations before cooling.
	AnnealingSkip int
	// SD is the standard deviation of the proposal.
	SD  float64
	src mcmc.Source
}

// NewAnnealer creates a simulated annealing optimizer for m.
func NewAnnealer(m mcmc.Model, src mcmc.Source) *Annealer {
	return &Annealer{
		BaseOptimizer: newBaseOptimizer(m),
		AccPeriod:     100,
		SD:            0.1,
		src:           src,
	}
}

// temperature returns the temperature at iteration i.
func (a *Annealer) temperature(i, iterations int) float64 {
	if i < a.AnnealingSkip || iterations <= a.AnnealingSkip {
		return 1
	}
	return math.Pow(0.9, float64(i-a.AnnealingSkip)/float64(iterations-a.AnnealingSkip)*100)
}

// Run starts the optimization from the current model state. The model
// is left at the best point visited.
func (a *Annealer) Run(iterations int) error {
	if err := a.check(); err != nil {
		return err
	}
	if a.SD <= 0 {
		return fmt.Errorf("%w: proposal sd %v", mcmc.ErrInvalidArgument, a.SD)
	}
	x := a.values(nil)
	l := a.logProb(x)
	if math.IsInf(l, -1) {
		return mcmc.ErrZeroProbability
	}
	propose := mcmc.NormalProposal(a.src, a.SD)

	a.PrintHeader()
	accepted := 0
	lastReported := -1
	for a.i = 0; a.i < iterations; a.i++ {
		T := a.temperature(a.i, iterations)
		if a.i > 0 && a.AccPeriod > 0 && a.i%a.AccPeriod == 0 {
			log.Infof("Acceptance rate %.2f%%", 100*float64(accepted)/float64(a.AccPeriod))
			accepted = 0
		}
		if a.repPeriod > 0 && a.i%a.repPeriod == 0 {
			log.Debugf("%d: L=%f, T=%f", a.i, l, T)
			a.PrintLine(x, l)
			lastReported = a.i
		}

		p := int(a.src.Float64() * float64(len(x)))
		old := x[p]
		x[p] = propose(old)
		newL := a.logProb(x)

		r := math.Exp((newL - l) / T)
		if r > 1 || a.src.Float64() < r {
			l = newL
			accepted++
		} else {
			x[p] = old
		}

		if a.signalled() {
			break
		}
	}
	if a.i != lastReported {
		a.PrintLine(x, l)
	}

	a.restoreMax()
	a.l = a.maxL
	log.Info("Finished simulated annealing")
	a.PrintFinal()
	return nil
}

// Summary returns the optimization summary.
func (a *Annealer) Summary() Summary {
	return a.summary("anneal")
}
