package mcmc

import (
	"bitbucket.org/Davydov/gonuts/checkpoint"
)

// StoreSink writes samples into a checkpoint.SampleStore using
// variable names as keys.
type StoreSink struct {
	store *checkpoint.SampleStore
	names map[VariableID]string
}

// NewStoreSink creates a sink writing samples of model variables to
// store.
func NewStoreSink(store *checkpoint.SampleStore, m Model, monitored []VariableID) *StoreSink {
	s := &StoreSink{
		store: store,
		names: make(map[VariableID]string, len(monitored)),
	}
	for _, id := range monitored {
		s.names[id] = variableName(m, id)
	}
	return s
}

// Add stores a sample.
func (s *StoreSink) Add(smp Sample) error {
	values := make(map[string]float64, len(smp))
	for id, v := range smp {
		name, ok := s.names[id]
		if !ok {
			name = "v" + id.String()
		}
		values[name] = v
	}
	return s.store.Add(values)
}

// Truncate drops the stored samples starting from n-th.
func (s *StoreSink) Truncate(n int) error {
	return s.store.Truncate(n)
}
