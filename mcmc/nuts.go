package mcmc

import (
	"fmt"
	"math"
)

// Stats are trajectory statistics of a NUTS run.
type Stats struct {
	// Iterations is the number of trajectories built.
	Iterations int `json:"iterations"`
	// Divergent is the number of trajectories stopped by
	// divergence.
	Divergent int `json:"divergent"`
	// Leapfrogs is the total number of leapfrog steps.
	Leapfrogs int `json:"leapfrogs"`
	// MaxTreeHeight is the largest tree height reached.
	MaxTreeHeight int `json:"maxTreeHeight"`
	// HeightLimited is the number of trajectories stopped by the
	// tree height limit.
	HeightLimited int `json:"heightLimited"`
	sumHeight     int
}

// MeanTreeHeight returns the average tree height.
func (s *Stats) MeanTreeHeight() float64 {
	if s.Iterations == 0 {
		return 0
	}
	return float64(s.sumHeight) / float64(s.Iterations)
}

func (s *Stats) add(height int, b *treeBuilder, limited bool) {
	s.Iterations++
	s.sumHeight += height
	s.Leapfrogs += b.leapfrogs
	if height > s.MaxTreeHeight {
		s.MaxTreeHeight = height
	}
	if b.divergent {
		s.Divergent++
	}
	if limited {
		s.HeightLimited++
	}
}

// NUTS is the No-U-Turn sampler (Hoffman & Gelman 2014, algorithm 3)
// with a fixed step size and identity mass matrix.
type NUTS struct {
	BaseSampler
	// StepSize is the leapfrog step size.
	StepSize float64
	// MaxTreeHeight stops the trajectory doubling at this height,
	// 0 means no limit.
	MaxTreeHeight int
	src           Source
	stats         Stats
}

// NewNUTS creates a NUTS sampler for the latent variables of m which
// reports the monitored variables.
func NewNUTS(m Model, monitored []VariableID, src Source) *NUTS {
	return &NUTS{
		BaseSampler: newBaseSampler(m, monitored),
		StepSize:    0.1,
		src:         src,
	}
}

// Run samples sampleCount samples. The first sample is the starting
// point. On return the model is set to the last sample.
func (n *NUTS) Run(sampleCount int) error {
	if err := n.check(sampleCount); err != nil {
		return err
	}
	if n.StepSize <= 0 || math.IsInf(n.StepSize, 0) || math.IsNaN(n.StepSize) {
		return fmt.Errorf("%w: step size %v", ErrInvalidArgument, n.StepSize)
	}
	first, err := n.restore()
	if err != nil {
		return fmt.Errorf("restoring checkpoint: %w", err)
	}
	if err := n.start(); err != nil {
		return err
	}
	log.Infof("NUTS: %d samples, step size %v, %d latent variables", sampleCount, n.StepSize, n.keys.Len())
	if n.MaxTreeHeight > 0 {
		log.Infof("Maximum tree height: %d", n.MaxTreeHeight)
	}

	acc := candidate{
		position: position(n.model, n.keys),
		gradient: gradient(n.model, n.keys),
		logP:     n.l,
		sample:   takeSample(n.model, n.monitored),
	}

	if err := n.alignSink(first); err != nil {
		return err
	}

	n.PrintHeader()
	n.i = first
	if n.i == 0 {
		if err := n.emit(acc.sample, acc.logP); err != nil {
			return err
		}
		n.i = 1
	} else {
		log.Noticef("Resuming from iteration %d", n.i)
	}

	forward := Endpoint{Position: acc.position, Gradient: acc.gradient}
	backward := forward
	lastReported := n.stats

	for ; n.i < sampleCount; n.i++ {
		if n.signalled() {
			break
		}

		p := NewStateVector(n.keys)
		for j := range p.vals {
			p.vals[j] = n.src.NormFloat64()
		}
		forward.Momentum = p
		backward.Momentum = p

		b := &treeBuilder{
			model:     n.model,
			monitored: n.monitored,
			src:       n.src,
			eps:       n.StepSize,
			u:         n.src.Float64() * math.Exp(negH(acc.logP, p)),
		}

		count := 1
		cont := true
		height := 0
		limited := false
		for cont {
			dir := 1
			if n.src.Float64() < 0.5 {
				dir = -1
			}

			var half tree
			if dir < 0 {
				half = b.build(backward, dir, height)
				backward = half.backward
			} else {
				half = b.build(forward, dir, height)
				forward = half.forward
			}

			if half.cont && withProbability(n.src, float64(half.count)/float64(count)) {
				acc = half.accepted
			}
			count += half.count
			cont = half.cont && notUTurning(forward, backward)
			height++

			if cont && n.MaxTreeHeight > 0 && height >= n.MaxTreeHeight {
				cont = false
				limited = true
			}
		}

		forward = Endpoint{Position: acc.position, Gradient: acc.gradient}
		backward = forward

		n.stats.add(height, b, limited)
		if err := n.emit(acc.sample, acc.logP); err != nil {
			return err
		}
		if n.AccPeriod > 0 && n.i%n.AccPeriod == 0 {
			n.reportStats(&lastReported)
		}
		n.saveCheckpoint(acc.position, n.i, false, false)
	}

	setPosition(n.model, acc.position)
	n.saveCheckpoint(acc.position, n.i-1, n.i >= sampleCount, true)
	n.finish()
	log.Infof("Divergent trajectories: %d/%d, mean tree height %.2f, leapfrog steps %d",
		n.stats.Divergent, n.stats.Iterations, n.stats.MeanTreeHeight(), n.stats.Leapfrogs)
	return nil
}

// reportStats logs statistics of the iterations since last report.
func (n *NUTS) reportStats(last *Stats) {
	iters := n.stats.Iterations - last.Iterations
	if iters == 0 {
		return
	}
	log.Infof("Divergent %.2f%%, mean tree height %.2f, %.1f leapfrog steps per iteration",
		100*float64(n.stats.Divergent-last.Divergent)/float64(iters),
		float64(n.stats.sumHeight-last.sumHeight)/float64(iters),
		float64(n.stats.Leapfrogs-last.Leapfrogs)/float64(iters))
	*last = n.stats
}

// Stats returns the trajectory statistics.
func (n *NUTS) Stats() Stats {
	return n.stats
}

// Summary returns the run summary.
func (n *NUTS) Summary() Summary {
	s := n.summary("nuts")
	stats := n.stats
	s.Stats = &stats
	return s
}

// Run draws sampleCount posterior samples of the monitored variables
// with NUTS.
func Run(m Model, monitored []VariableID, sampleCount int, stepSize float64, src Source) ([]Sample, error) {
	samples := NewSamples()
	n := NewNUTS(m, monitored, src)
	n.StepSize = stepSize
	n.Sink = samples
	n.Quiet = true
	if err := n.Run(sampleCount); err != nil {
		return nil, err
	}
	return samples.All(), nil
}
