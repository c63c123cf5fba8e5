package mcmc

import (
	"math"

	"github.com/gonum/floats"

	"bitbucket.org/Davydov/gonuts/dist"
)

// Sample stores values of the monitored variables at one point of the
// chain.
type Sample map[VariableID]float64

// Sink receives samples in the order they are produced.
type Sink interface {
	Add(s Sample) error
}

// Truncater is a Sink which keeps samples between runs. Truncate(n)
// leaves only the first n samples.
type Truncater interface {
	Truncate(n int) error
}

// MultiSink passes every sample to all of its sinks.
type MultiSink []Sink

// Add adds the sample to every sink, stopping at the first error.
func (ms MultiSink) Add(s Sample) error {
	for _, sink := range ms {
		if err := sink.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// Truncate truncates every sink implementing Truncater.
func (ms MultiSink) Truncate(n int) error {
	for _, sink := range ms {
		if t, ok := sink.(Truncater); ok {
			if err := t.Truncate(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Samples is an in-memory sink keeping values per variable.
type Samples struct {
	samples []Sample
	values  map[VariableID][]float64
}

// NewSamples creates an empty sample container.
func NewSamples() *Samples {
	return &Samples{values: make(map[VariableID][]float64)}
}

// Add appends a sample.
func (s *Samples) Add(smp Sample) error {
	s.samples = append(s.samples, smp)
	for id, v := range smp {
		s.values[id] = append(s.values[id], v)
	}
	return nil
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	return len(s.samples)
}

// At returns i-th sample.
func (s *Samples) At(i int) Sample {
	return s.samples[i]
}

// All returns all the samples.
func (s *Samples) All() []Sample {
	return s.samples
}

// Get returns all values of a variable.
func (s *Samples) Get(id VariableID) []float64 {
	return s.values[id]
}

// Mean returns the sample mean of a variable.
func (s *Samples) Mean(id VariableID) float64 {
	v := s.values[id]
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Sum(v) / float64(len(v))
}

// SD returns the sample standard deviation of a variable.
func (s *Samples) SD(id VariableID) float64 {
	v := s.values[id]
	if len(v) < 2 {
		return math.NaN()
	}
	mean := s.Mean(id)
	d := append([]float64(nil), v...)
	floats.AddConst(-mean, d)
	return math.Sqrt(floats.Dot(d, d) / float64(len(v)-1))
}

// nBatches is the number of batches used for the Monte Carlo error.
const nBatches = 20

// MeanInterval returns a confidence interval for the posterior mean of
// a variable at the given level. The Monte Carlo standard error is
// estimated with non-overlapping batch means, so autocorrelation of
// the chain is taken into account.
func (s *Samples) MeanInterval(id VariableID, level float64) (lo, hi float64) {
	v := s.values[id]
	mean := s.Mean(id)
	bsize := len(v) / nBatches
	if bsize < 2 {
		return math.NaN(), math.NaN()
	}
	bmeans := make([]float64, nBatches)
	for b := range bmeans {
		bmeans[b] = floats.Sum(v[b*bsize:(b+1)*bsize]) / float64(bsize)
	}
	floats.AddConst(-mean, bmeans)
	bvar := floats.Dot(bmeans, bmeans) / float64(nBatches-1)
	se := math.Sqrt(bvar / nBatches)
	z := dist.QuantileNormal(0.5 + level/2)
	return mean - z*se, mean + z*se
}
