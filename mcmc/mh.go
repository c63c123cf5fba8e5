package mcmc

import (
	"fmt"
	"math"
)

// MH is a random walk Metropolis-Hastings sampler updating one latent
// variable per iteration.
type MH struct {
	BaseSampler
	// SD is the standard deviation of the normal proposal.
	SD       float64
	src      Source
	accepted int
	total    int
	// Adaptive tunes the proposal sd of every variable, nil
	// disables the adaptation.
	*Adaptive
}

// NewMH creates a new MH sampler.
func NewMH(m Model, monitored []VariableID, src Source) *MH {
	return &MH{
		BaseSampler: newBaseSampler(m, monitored),
		SD:          1,
		src:         src,
	}
}

// SetAdaptive enables the adaptive proposal, ap == nil disables it.
// It should be called after SD is set.
func (m *MH) SetAdaptive(ap *AdaptiveParameters) {
	if ap != nil {
		log.Info("Setting adaptive")
		m.Adaptive = NewAdaptive(m.keys.Len(), m.names, m.SD, ap)
	} else {
		log.Info("Setting nonadaptive")
		m.Adaptive = nil
	}
}

// Run starts sampling. The first sample is the starting point.
func (m *MH) Run(sampleCount int) error {
	if err := m.check(sampleCount); err != nil {
		return err
	}
	if m.SD <= 0 {
		return fmt.Errorf("%w: proposal sd %v", ErrInvalidArgument, m.SD)
	}
	first, err := m.restore()
	if err != nil {
		return fmt.Errorf("restoring checkpoint: %w", err)
	}
	if err := m.start(); err != nil {
		return err
	}
	log.Infof("Metropolis-Hastings: %d samples, proposal sd %v", sampleCount, m.SD)
	if m.Adaptive != nil {
		log.Info(m.Adaptive)
	}

	propose := NormalProposal(m.src, m.SD)
	ids := m.keys.IDs()
	l := m.l

	if err := m.alignSink(first); err != nil {
		return err
	}

	m.PrintHeader()
	m.i = first
	if m.i == 0 {
		if err := m.emit(takeSample(m.model, m.monitored), l); err != nil {
			return err
		}
		m.i = 1
	} else {
		log.Noticef("Resuming from iteration %d", m.i)
	}

	accepted := 0
	for ; m.i < sampleCount; m.i++ {
		if m.signalled() {
			break
		}
		if m.AccPeriod > 0 && m.i%m.AccPeriod == 0 {
			log.Infof("Acceptance rate %.2f%%", 100*float64(accepted)/float64(m.AccPeriod))
			accepted = 0
		}

		p := int(m.src.Float64() * float64(len(ids)))
		id := ids[p]
		val := m.model.Value(id)
		if m.Adaptive != nil {
			m.model.SetValue(id, val+m.src.NormFloat64()*m.Adaptive.SD(p))
		} else {
			m.model.SetValue(id, propose(val))
		}
		m.model.Propagate([]VariableID{id})
		newL := m.model.LogProb()

		a := math.Exp(newL - l)
		ok := a > 1 || m.src.Float64() < a
		if ok {
			l = newL
			accepted++
			m.accepted++
		} else {
			m.model.SetValue(id, val)
			m.model.Propagate([]VariableID{id})
		}
		m.total++
		if m.Adaptive != nil && m.i >= m.Adaptive.Skip {
			m.Adaptive.Update(p, ok)
		}

		if err := m.emit(takeSample(m.model, m.monitored), l); err != nil {
			return err
		}
		m.saveCheckpoint(position(m.model, m.keys), m.i, false, false)
	}

	m.saveCheckpoint(position(m.model, m.keys), m.i-1, m.i >= sampleCount, true)
	m.finish()
	return nil
}

// AcceptanceRate returns the fraction of accepted proposals.
func (m *MH) AcceptanceRate() float64 {
	if m.total == 0 {
		return math.NaN()
	}
	return float64(m.accepted) / float64(m.total)
}

// Summary returns the run summary.
func (m *MH) Summary() Summary {
	s := m.summary("mh")
	if m.total > 0 {
		s.AcceptanceRate = m.AcceptanceRate()
	}
	return s
}
