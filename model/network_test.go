package model

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/gonuts/mcmc"
)

const (
	// smallDiff is a threshold for comparing floating point values.
	smallDiff = 1e-6
	// h is the finite difference step.
	h = 1e-6
)

func init() {
	// disable logging for tests
	logging.SetLevel(logging.WARNING, "model")
	logging.SetLevel(logging.WARNING, "mcmc")
}

// gaussianSum creates A, B ~ N(20, 1), C ~ N(A+B, 1) with C observed
// at 46.
func gaussianSum() (n *Network, a, b, s *Vertex) {
	a = Gaussian(Const(20), Const(1)).Named("A")
	b = Gaussian(Const(20), Const(1)).Named("B")
	s = Add(a, b).Named("S")
	c := Gaussian(s, Const(1)).Named("C").Observe(46)
	n, err := NewNetwork(c)
	if err != nil {
		panic(err)
	}
	return
}

// checkGradient compares the gradient with finite differences at the
// current values.
func checkGradient(tst *testing.T, n *Network) {
	ids := n.Latents()
	grad := make([]float64, len(ids))
	n.Gradient(ids, grad)
	for i, id := range ids {
		x := n.Value(id)
		n.SetValue(id, x+h)
		n.Propagate([]mcmc.VariableID{id})
		up := n.LogProb()
		n.SetValue(id, x-h)
		n.Propagate([]mcmc.VariableID{id})
		down := n.LogProb()
		n.SetValue(id, x)
		n.Propagate([]mcmc.VariableID{id})
		num := (up - down) / (2 * h)
		if math.Abs(num-grad[i]) > 1e-4*math.Max(1, math.Abs(num)) {
			tst.Errorf("%s: expected derivative %v, got %v", n.Name(id), num, grad[i])
		}
	}
}

func TestNetworkLogProb(tst *testing.T) {
	n, a, b, _ := gaussianSum()
	latents := n.Latents()
	if len(latents) != 2 || latents[0] != a.ID() || latents[1] != b.ID() {
		tst.Fatal("Incorrect latents", latents)
	}
	// two standard normals at the mean and one at distance 6
	ref := 3*(-0.5*math.Log(2*math.Pi)) - 18
	if l := n.LogProb(); math.Abs(l-ref) > smallDiff {
		tst.Error("Expected", ref, ", got", l)
	}

	grad := make([]float64, 2)
	n.Gradient(latents, grad)
	if math.Abs(grad[0]-6) > smallDiff || math.Abs(grad[1]-6) > smallDiff {
		tst.Error("Expected gradient (6, 6), got", grad)
	}
	checkGradient(tst, n)
}

func TestNetworkPropagate(tst *testing.T) {
	n, a, b, s := gaussianSum()
	n.SetValue(a.ID(), 21)
	if s.Value() != 40 {
		tst.Error("SetValue must not propagate")
	}
	n.Propagate([]mcmc.VariableID{a.ID()})
	if s.Value() != 41 {
		tst.Error("Expected 41, got", s.Value())
	}
	n.SetValue(a.ID(), 1)
	n.SetValue(b.ID(), 2)
	n.Propagate(n.Latents())
	if s.Value() != 3 {
		tst.Error("Expected 3, got", s.Value())
	}
	if n.Vertex("S") != s || n.ByID(s.ID()) != s || n.Name(s.ID()) != "S" {
		tst.Error("Lookup failed")
	}
}

func TestNetworkOperations(tst *testing.T) {
	x := Gaussian(Const(0), Const(1)).Named("x").SetValue(0.3)
	r := Gamma(Const(2), Const(1)).Named("r").SetValue(1.7)
	sd := Exp(Scale(Log(r), 0.5))
	mu := Sum(Multiply(x, r), x, Const(1))
	y := Gaussian(mu, sd).Observe(2)
	p := Beta(Const(2), Const(2)).Named("p").SetValue(0.4)
	z := Exponential(Multiply(p, Const(3))).Observe(0.5)
	u := Uniform(Const(-1), Add(p, Const(1))).Observe(0.2)

	n, err := NewNetwork(y, z, u)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if len(n.Latents()) != 3 {
		tst.Fatal("Expected 3 latents, got", len(n.Latents()))
	}
	checkGradient(tst, n)

	if math.Abs(sd.Value()-math.Sqrt(1.7)) > smallDiff {
		tst.Error("Expected sqrt(1.7), got", sd.Value())
	}
	if math.Abs(mu.Value()-(0.3*1.7+0.3+1)) > smallDiff {
		tst.Error("Expected 1.81, got", mu.Value())
	}
}

func TestNetworkCascadeOrder(tst *testing.T) {
	// d depends on a both directly and through c
	a := Gaussian(Const(0), Const(1)).Named("a")
	c := Scale(a, 2)
	d := Add(c, a)
	e := Multiply(d, c)
	obs := Gaussian(e, Const(1)).Observe(1)
	n, err := NewNetwork(obs)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	n.SetValue(a.ID(), 1)
	n.Propagate([]mcmc.VariableID{a.ID()})
	if c.Value() != 2 || d.Value() != 3 || e.Value() != 6 {
		tst.Error("Incorrect propagation", c.Value(), d.Value(), e.Value())
	}
	checkGradient(tst, n)
}

func TestNetworkErrors(tst *testing.T) {
	a := Gaussian(Const(0), Const(1)).Named("a")
	b := Gaussian(a, Const(1)).Named("a")
	if _, err := NewNetwork(b); err == nil {
		tst.Error("Duplicate name accepted")
	}

	x := Gaussian(Const(0), Const(1))
	y := Add(x, Const(1))
	x.parents[0] = y
	if _, err := NewNetwork(y); err == nil {
		tst.Error("Cycle accepted")
	}
}

func TestDeterministicSetValuePanics(tst *testing.T) {
	s := Add(Const(1), Const(2))
	defer func() {
		if recover() == nil {
			tst.Error("Expected panic")
		}
	}()
	s.SetValue(1)
}

func TestProbe(tst *testing.T) {
	p := Uniform(Const(0), Const(1)).Named("p").SetValue(5)
	n, err := NewNetwork(Exponential(p).Observe(1))
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if !math.IsInf(n.LogProb(), -1) {
		tst.Fatal("Expected zero probability")
	}
	if err := n.ProbeForNonZeroProbability(100, rand.New(rand.NewSource(1))); err != nil {
		tst.Fatal("Error: ", err)
	}
	if p.Value() < 0 || p.Value() > 1 || math.IsInf(n.LogProb(), -1) {
		tst.Error("Probing didn't find a valid state", p.Value())
	}

	q := Gaussian(Const(0), Const(1))
	n, err = NewNetwork(Exponential(Exp(q)).Observe(-1))
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	err = n.ProbeForNonZeroProbability(10, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrImpossible) {
		tst.Error("Expected impossible state error, got", err)
	}
}

func TestNetworkCopy(tst *testing.T) {
	n, a, _, s := gaussianSum()
	c := n.Copy()
	if len(c.Latents()) != 2 || c.Latents()[0] != a.ID() {
		tst.Fatal("Copy has different latents")
	}
	c.SetValue(a.ID(), 25)
	c.Propagate([]mcmc.VariableID{a.ID()})
	if a.Value() != 20 || s.Value() != 40 {
		tst.Error("Changing the copy changed the source network")
	}
	if c.Value(s.ID()) != 45 {
		tst.Error("Expected 45 in the copy, got", c.Value(s.ID()))
	}
	if c.Vertex("S") == s {
		tst.Error("Copy shares vertices")
	}
	if math.Abs(n.LogProb()-c.LogProb()) < smallDiff {
		tst.Error("Log-probabilities must differ after the change")
	}
}
