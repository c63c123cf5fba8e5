// Package model implements probabilistic graphical models of
// continuous variables which can be sampled with mcmc.
package model

import (
	"math"
	"sync/atomic"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/gonuts/dist"
	"bitbucket.org/Davydov/gonuts/mcmc"
)

// log is the global logging variable.
var log = logging.MustGetLogger("model")

// lastID is the last vertex id given out.
var lastID int64

func newID() mcmc.VariableID {
	return mcmc.VariableID(atomic.AddInt64(&lastID, 1))
}

// op is a deterministic operation.
type op interface {
	name() string
	eval(args []float64) float64
	// partials stores derivatives with respect to every argument
	// in dst.
	partials(args []float64, dst []float64)
}

// Vertex is a variable of the model. It is either a constant, a
// random variable with a density, or a deterministic function of
// other vertices.
type Vertex struct {
	id      mcmc.VariableID
	name    string
	value   float64
	parents []*Vertex

	density  dist.Density
	observed bool

	op op
}

// ID returns the vertex id.
func (v *Vertex) ID() mcmc.VariableID {
	return v.id
}

// Name returns the vertex name.
func (v *Vertex) Name() string {
	if v.name == "" {
		return "v" + v.id.String()
	}
	return v.name
}

// Named sets the vertex name and returns the vertex.
func (v *Vertex) Named(name string) *Vertex {
	v.name = name
	return v
}

// Value returns the current value.
func (v *Vertex) Value() float64 {
	return v.value
}

// SetValue sets the value of a random vertex. Dependent vertices are
// updated by Network.Propagate.
func (v *Vertex) SetValue(x float64) *Vertex {
	if v.op != nil {
		panic("cannot set the value of a deterministic vertex")
	}
	v.value = x
	return v
}

// Observe fixes the value of a random vertex.
func (v *Vertex) Observe(x float64) *Vertex {
	if v.density == nil {
		panic("only random vertices can be observed")
	}
	v.value = x
	v.observed = true
	return v
}

// Observed returns true for observed vertices.
func (v *Vertex) Observed() bool {
	return v.observed
}

// Probabilistic returns true for vertices with a density.
func (v *Vertex) Probabilistic() bool {
	return v.density != nil
}

// Latent returns true for unobserved random vertices.
func (v *Vertex) Latent() bool {
	return v.density != nil && !v.observed
}

// Kind returns the distribution or operation name.
func (v *Vertex) Kind() string {
	switch {
	case v.density != nil:
		return v.density.Name()
	case v.op != nil:
		return v.op.name()
	}
	return "const"
}

// Parents returns the vertices v depends on.
func (v *Vertex) Parents() []*Vertex {
	return v.parents
}

// parentValues writes the values of the parents into dst.
func (v *Vertex) parentValues(dst []float64) []float64 {
	dst = dst[:0]
	for _, p := range v.parents {
		dst = append(dst, p.value)
	}
	return dst
}

// logProb returns the log-density of a random vertex.
func (v *Vertex) logProb(buf []float64) float64 {
	return v.density.LogPdf(v.value, v.parentValues(buf))
}

// update recomputes the value of a deterministic vertex.
func (v *Vertex) update(buf []float64) {
	v.value = v.op.eval(v.parentValues(buf))
}

// Const creates a constant vertex.
func Const(x float64) *Vertex {
	return &Vertex{id: newID(), value: x}
}

// Random creates a random vertex with density d. The starting value
// is the mean of the distribution.
func Random(d dist.Density, params ...*Vertex) *Vertex {
	if len(params) != d.NParams() {
		panic("incorrect number of parameters for " + d.Name())
	}
	v := &Vertex{id: newID(), density: d, parents: params}
	v.value = d.Mean(v.parentValues(nil))
	return v
}

// Gaussian creates a normally distributed vertex.
func Gaussian(mu, sigma *Vertex) *Vertex {
	return Random(dist.Gaussian{}, mu, sigma)
}

// Exponential creates an exponentially distributed vertex.
func Exponential(rate *Vertex) *Vertex {
	return Random(dist.Exponential{}, rate)
}

// Gamma creates a gamma distributed vertex.
func Gamma(shape, scale *Vertex) *Vertex {
	return Random(dist.Gamma{}, shape, scale)
}

// Beta creates a beta distributed vertex.
func Beta(a, b *Vertex) *Vertex {
	return Random(dist.Beta{}, a, b)
}

// Uniform creates a uniformly distributed vertex.
func Uniform(min, max *Vertex) *Vertex {
	return Random(dist.Uniform{}, min, max)
}

// Flat creates a vertex with an improper flat density. Its
// distribution is usually given by a factor.
func Flat() *Vertex {
	return Random(dist.Flat{})
}

// apply creates a deterministic vertex.
func apply(o op, args ...*Vertex) *Vertex {
	v := &Vertex{id: newID(), op: o, parents: args}
	v.update(nil)
	return v
}

type addOp struct{}

func (addOp) name() string { return "add" }

func (addOp) eval(args []float64) (s float64) {
	for _, a := range args {
		s += a
	}
	return
}

func (addOp) partials(args []float64, dst []float64) {
	for i := range args {
		dst[i] = 1
	}
}

type mulOp struct{}

func (mulOp) name() string { return "multiply" }

func (mulOp) eval(args []float64) float64 {
	return args[0] * args[1]
}

func (mulOp) partials(args []float64, dst []float64) {
	dst[0] = args[1]
	dst[1] = args[0]
}

type scaleOp struct {
	c float64
}

func (scaleOp) name() string { return "scale" }

func (o scaleOp) eval(args []float64) float64 {
	return o.c * args[0]
}

func (o scaleOp) partials(args []float64, dst []float64) {
	dst[0] = o.c
}

type expOp struct{}

func (expOp) name() string { return "exp" }

func (expOp) eval(args []float64) float64 {
	return math.Exp(args[0])
}

func (expOp) partials(args []float64, dst []float64) {
	dst[0] = math.Exp(args[0])
}

type logOp struct{}

func (logOp) name() string { return "log" }

func (logOp) eval(args []float64) float64 {
	return math.Log(args[0])
}

func (logOp) partials(args []float64, dst []float64) {
	dst[0] = 1 / args[0]
}

// Add creates a vertex a+b.
func Add(a, b *Vertex) *Vertex {
	return apply(addOp{}, a, b)
}

// Sum creates a vertex summing all the arguments.
func Sum(vs ...*Vertex) *Vertex {
	return apply(addOp{}, vs...)
}

// Multiply creates a vertex a*b.
func Multiply(a, b *Vertex) *Vertex {
	return apply(mulOp{}, a, b)
}

// Scale creates a vertex c*a.
func Scale(a *Vertex, c float64) *Vertex {
	return apply(scaleOp{c}, a)
}

// Exp creates a vertex exp(a).
func Exp(a *Vertex) *Vertex {
	return apply(expOp{}, a)
}

// Log creates a vertex log(a).
func Log(a *Vertex) *Vertex {
	return apply(logOp{}, a)
}
