package mcmc

import (
	"errors"
	"math/rand"
)

var (
	// ErrZeroProbability is returned if the starting point of a
	// chain has zero probability.
	ErrZeroProbability = errors.New("initial state has zero probability")
	// ErrInvalidArgument is returned for incorrect sampler settings.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Model is an evaluation context owning the current assignment of
// the model variables. It is not safe for concurrent use; every
// chain needs its own Model.
type Model interface {
	// Latents returns the continuous latent variables to sample.
	Latents() []VariableID
	// Value returns the current value of any variable.
	Value(id VariableID) float64
	// SetValue sets a latent variable without updating the
	// variables depending on it.
	SetValue(id VariableID, val float64)
	// Propagate recomputes values depending on the given latents.
	Propagate(ids []VariableID)
	// LogProb returns the joint log-probability of the current
	// assignment.
	LogProb() float64
	// Gradient writes the gradient of LogProb with respect to
	// ids into dst.
	Gradient(ids []VariableID, dst []float64)
}

// Namer is implemented by models which can name their variables.
type Namer interface {
	Name(id VariableID) string
}

// variableName returns a human-readable variable name.
func variableName(m Model, id VariableID) string {
	if n, ok := m.(Namer); ok {
		return n.Name(id)
	}
	return "v" + id.String()
}

// Source is a random number source. *rand.Rand implements it.
type Source interface {
	// Uint64 returns a uniform 64-bit integer.
	Uint64() uint64
	// Float64 returns a uniform number in [0, 1).
	Float64() float64
	// NormFloat64 returns a standard normal number.
	NormFloat64() float64
}

// NewSource returns a seeded Source.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// position reads the current latent values from the model.
func position(m Model, keys *KeySet) StateVector {
	q := NewStateVector(keys)
	for i, id := range keys.ids {
		q.vals[i] = m.Value(id)
	}
	return q
}

// setPosition applies q to the model and propagates the change.
func setPosition(m Model, q StateVector) {
	for i, id := range q.keys.ids {
		m.SetValue(id, q.vals[i])
	}
	m.Propagate(q.keys.ids)
}

// gradient evaluates the log-probability gradient at the current
// assignment.
func gradient(m Model, keys *KeySet) StateVector {
	g := NewStateVector(keys)
	m.Gradient(keys.ids, g.vals)
	return g
}

// takeSample reads the monitored variables. It doesn't change the
// model.
func takeSample(m Model, monitored []VariableID) Sample {
	s := make(Sample, len(monitored))
	for _, id := range monitored {
		s[id] = m.Value(id)
	}
	return s
}
