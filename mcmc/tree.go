package mcmc

import "math"

// deltaMax is the energy error above which a trajectory is considered
// divergent.
const deltaMax = 1000.0

// candidate is the point a (sub)tree currently proposes as the next
// sample.
type candidate struct {
	position StateVector
	gradient StateVector
	logP     float64
	sample   Sample
}

// tree is the result of building a subtree of the trajectory.
type tree struct {
	backward Endpoint
	forward  Endpoint
	accepted candidate
	// count is the number of leapfrog points inside the slice.
	count int
	// cont is false once the subtree diverged or made a U-turn.
	cont bool
}

// endpoint returns the boundary in direction dir.
func (t tree) endpoint(dir int) Endpoint {
	if dir < 0 {
		return t.backward
	}
	return t.forward
}

// withEndpoint returns a copy of t with the boundary in direction dir
// replaced.
func (t tree) withEndpoint(dir int, e Endpoint) tree {
	if dir < 0 {
		t.backward = e
	} else {
		t.forward = e
	}
	return t
}

// withProbability returns true with probability p. Zero and NaN
// probabilities never succeed.
func withProbability(src Source, p float64) bool {
	return src.Float64() < p
}

// treeBuilder holds everything which is constant while the trajectory
// of one iteration is built.
type treeBuilder struct {
	model     Model
	monitored []VariableID
	src       Source
	eps       float64
	// u is the slice variable.
	u float64
	// leapfrogs counts leapfrog steps performed.
	leapfrogs int
	// divergent is set if any base case failed the divergence test.
	divergent bool
}

// build builds a subtree with 2^height leapfrog steps from e in
// direction dir.
func (b *treeBuilder) build(e Endpoint, dir, height int) tree {
	if height == 0 {
		return b.leaf(e, dir)
	}

	t := b.build(e, dir, height-1)
	if !t.cont {
		return t
	}
	other := b.build(t.endpoint(dir), dir, height-1)
	return b.merge(t, other, dir)
}

// leaf takes a single leapfrog step.
func (b *treeBuilder) leaf(e Endpoint, dir int) tree {
	next := leapfrog(b.model, e, b.eps*float64(dir))
	b.leapfrogs++

	logP := b.model.LogProb()
	h := negH(logP, next.Momentum)

	count := 0
	if b.u <= math.Exp(h) {
		count = 1
	}
	cont := b.u < math.Exp(deltaMax+h)
	if !cont {
		b.divergent = true
	}

	return tree{
		backward: next,
		forward:  next,
		accepted: candidate{
			position: next.Position,
			gradient: next.Gradient,
			logP:     logP,
			sample:   takeSample(b.model, b.monitored),
		},
		count: count,
		cont:  cont,
	}
}

// merge joins t with the subtree other built after it in direction
// dir.
func (b *treeBuilder) merge(t, other tree, dir int) tree {
	merged := t.withEndpoint(dir, other.endpoint(dir))
	total := t.count + other.count
	if total > 0 && withProbability(b.src, float64(other.count)/float64(total)) {
		merged.accepted = other.accepted
	}
	merged.cont = other.cont && notUTurning(merged.forward, merged.backward)
	merged.count = total
	return merged
}
