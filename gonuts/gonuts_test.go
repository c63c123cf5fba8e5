package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/gonuts/mcmc"
	"bitbucket.org/Davydov/gonuts/model"
)

func init() {
	// disable logging for tests
	logging.SetLevel(logging.WARNING, "gonuts")
	logging.SetLevel(logging.WARNING, "model")
}

func gaussianSum() *model.Network {
	a := model.Gaussian(model.Const(20), model.Const(1)).Named("A")
	b := model.Gaussian(model.Const(20), model.Const(1)).Named("B")
	s := model.Add(a, b).Named("S")
	n, err := model.NewNetwork(model.Gaussian(s, model.Const(1)).Named("C").Observe(46))
	if err != nil {
		panic(err)
	}
	return n
}

func TestReadStart(tst *testing.T) {
	fn := filepath.Join(tst.TempDir(), "trajectory.txt")
	content := "iteration\tlogprob\tA\tS\tB\n" +
		"0\t-20.7\t20\t40\t20\n" +
		"10\t-5.1\t21.5\t43.7\t22.2\n"
	if err := os.WriteFile(fn, []byte(content), 0644); err != nil {
		tst.Fatal("Error: ", err)
	}
	n := gaussianSum()
	if err := readStart(n, fn); err != nil {
		tst.Fatal("Error: ", err)
	}
	if n.Vertex("A").Value() != 21.5 || n.Vertex("B").Value() != 22.2 {
		tst.Error("Incorrect start", n.Vertex("A").Value(), n.Vertex("B").Value())
	}
	// S is computed, not read
	if math.Abs(n.Vertex("S").Value()-43.7) > 1e-9 {
		tst.Error("Expected 43.7, got", n.Vertex("S").Value())
	}

	bad := filepath.Join(tst.TempDir(), "bad.txt")
	if err := os.WriteFile(bad, []byte("iteration\tlogprob\tA\n0\t1\n"), 0644); err != nil {
		tst.Fatal("Error: ", err)
	}
	if err := readStart(gaussianSum(), bad); err == nil {
		tst.Error("Mismatched trajectory accepted")
	}
}

func TestPosteriorSummary(tst *testing.T) {
	n := gaussianSum()
	a := n.Vertex("A").ID()
	samples := mcmc.NewSamples()
	for i := 0; i < 100; i++ {
		x := float64(i % 3)
		if i < 10 {
			x = 100
		}
		samples.Add(mcmc.Sample{a: x})
	}
	res := posteriorSummary(n, samples, []mcmc.VariableID{a}, 10)
	if len(res) != 1 || res[0].Name != "A" {
		tst.Fatal("Incorrect summary", res)
	}
	if math.Abs(res[0].Mean-1) > 1e-9 {
		tst.Error("Expected mean 1, got", res[0].Mean)
	}
	if !(res[0].MeanLow < 1 && res[0].MeanHigh > 1) {
		tst.Error("Incorrect interval", res[0].MeanLow, res[0].MeanHigh)
	}

	short := mcmc.NewSamples()
	short.Add(mcmc.Sample{a: 1})
	res = posteriorSummary(n, short, []mcmc.VariableID{a}, 0)
	if res[0].Mean != 1 || res[0].SD != 0 || res[0].MeanLow != 0 {
		tst.Error("Non-finite values must be replaced", res[0])
	}
}
