package dist

import (
	"math"
	"math/rand"
	"testing"
)

const (
	smallDiff = 1e-6
	// h is the finite difference step.
	h = 1e-6
)

type densityCase struct {
	d      Density
	x      float64
	params []float64
}

var densityCases = []densityCase{
	{Gaussian{}, 1.3, []float64{0.5, 2}},
	{Exponential{}, 0.7, []float64{1.5}},
	{Gamma{}, 2.2, []float64{3, 0.8}},
	{Gamma{}, 0.4, []float64{0.6, 2}},
	{Beta{}, 0.3, []float64{2, 5}},
	{Uniform{}, 0.5, []float64{-1, 2}},
	{Flat{}, 10, nil},
}

func TestDerivatives(tst *testing.T) {
	for _, c := range densityCases {
		dparams := make([]float64, len(c.params))
		dx := c.d.DLogPdf(c.x, c.params, dparams)

		num := (c.d.LogPdf(c.x+h, c.params) - c.d.LogPdf(c.x-h, c.params)) / (2 * h)
		if math.Abs(num-dx) > 1e-4 {
			tst.Errorf("%s: d/dx expected %v, got %v", c.d.Name(), num, dx)
		}

		for i := range c.params {
			p := append([]float64(nil), c.params...)
			p[i] = c.params[i] + h
			up := c.d.LogPdf(c.x, p)
			p[i] = c.params[i] - h
			down := c.d.LogPdf(c.x, p)
			num := (up - down) / (2 * h)
			if math.Abs(num-dparams[i]) > 1e-4 {
				tst.Errorf("%s: d/dparam%d expected %v, got %v", c.d.Name(), i, num, dparams[i])
			}
		}
	}
}

func TestLogPdfValues(tst *testing.T) {
	if l := (Gaussian{}).LogPdf(0, []float64{0, 1}); math.Abs(l+0.918938533204673) > smallDiff {
		tst.Error("Gaussian: expected -0.918939, got", l)
	}
	if l := (Exponential{}).LogPdf(1, []float64{2}); math.Abs(l-(math.Log(2)-2)) > smallDiff {
		tst.Error("Exponential: expected -1.306853, got", l)
	}
	// Gamma(2, 1) at 1 is e^-1
	if l := (Gamma{}).LogPdf(1, []float64{2, 1}); math.Abs(l+1) > smallDiff {
		tst.Error("Gamma: expected -1, got", l)
	}
	// Beta(2, 2) at 0.5 is 1.5
	if l := (Beta{}).LogPdf(0.5, []float64{2, 2}); math.Abs(l-math.Log(1.5)) > smallDiff {
		tst.Error("Beta: expected 0.405465, got", l)
	}
	if l := (Uniform{}).LogPdf(0, []float64{-2, 2}); math.Abs(l+math.Log(4)) > smallDiff {
		tst.Error("Uniform: expected -1.386294, got", l)
	}
}

func TestOutOfSupport(tst *testing.T) {
	cases := []densityCase{
		{Gaussian{}, 0, []float64{0, -1}},
		{Exponential{}, -1, []float64{1}},
		{Gamma{}, -1, []float64{1, 1}},
		{Beta{}, 1.5, []float64{1, 1}},
		{Uniform{}, 3, []float64{0, 1}},
	}
	for _, c := range cases {
		if l := c.d.LogPdf(c.x, c.params); !math.IsInf(l, -1) {
			tst.Errorf("%s: expected -Inf, got %v", c.d.Name(), l)
		}
		dparams := make([]float64, len(c.params))
		for i := range dparams {
			dparams[i] = 1
		}
		if dx := c.d.DLogPdf(c.x, c.params, dparams); dx != 0 {
			tst.Errorf("%s: expected zero derivative, got %v", c.d.Name(), dx)
		}
		for _, dp := range dparams {
			if dp != 0 {
				tst.Errorf("%s: expected zero parameter derivatives, got %v", c.d.Name(), dparams)
			}
		}
	}
}

func TestSampleMeans(tst *testing.T) {
	src := rand.New(rand.NewSource(1))
	cases := []densityCase{
		{Gaussian{}, 0, []float64{2, 3}},
		{Exponential{}, 0, []float64{4}},
		{Gamma{}, 0, []float64{3, 0.5}},
		{Gamma{}, 0, []float64{0.5, 2}},
		{Beta{}, 0, []float64{2, 3}},
		{Uniform{}, 0, []float64{1, 3}},
	}
	const n = 100000
	for _, c := range cases {
		var s float64
		for i := 0; i < n; i++ {
			x := c.d.Sample(src, c.params)
			if math.IsInf(c.d.LogPdf(x, c.params), -1) {
				tst.Fatalf("%s: sample %v is out of support", c.d.Name(), x)
			}
			s += x
		}
		mean := c.d.Mean(c.params)
		if math.Abs(s/n-mean) > 0.05*math.Max(1, math.Abs(mean)) {
			tst.Errorf("%s: expected mean %v, got %v", c.d.Name(), mean, s/n)
		}
	}
}

func TestByName(tst *testing.T) {
	for _, name := range []string{"gaussian", "Normal", "exponential", "gamma", "beta", "uniform", "flat"} {
		if _, err := ByName(name); err != nil {
			tst.Error("Error: ", err)
		}
	}
	if _, err := ByName("cauchy"); err == nil {
		tst.Error("Unknown distribution accepted")
	}
}

func TestQuantileNormal(tst *testing.T) {
	if q := QuantileNormal(0.975); math.Abs(q-1.959963984540054) > smallDiff {
		tst.Error("Expected 1.959964, got", q)
	}
	if q := QuantileNormal(0.5); math.Abs(q) > smallDiff {
		tst.Error("Expected 0, got", q)
	}
}

func TestSampleSeeded(tst *testing.T) {
	draw := func(seed int64) []float64 {
		src := rand.New(rand.NewSource(seed))
		var xs []float64
		for _, c := range densityCases {
			xs = append(xs, c.d.Sample(src, c.params))
		}
		return xs
	}
	a, b, c := draw(3), draw(3), draw(4)
	same := true
	for i := range a {
		if a[i] != b[i] {
			tst.Errorf("%s: same seed gave %v and %v", densityCases[i].d.Name(), a[i], b[i])
		}
		same = same && a[i] == c[i]
	}
	if same {
		tst.Error("Different seeds gave the same samples")
	}
}

func TestMeans(tst *testing.T) {
	cases := []struct {
		c    densityCase
		mean float64
	}{
		{densityCase{Gaussian{}, 0, []float64{2, 3}}, 2},
		{densityCase{Exponential{}, 0, []float64{4}}, 0.25},
		{densityCase{Gamma{}, 0, []float64{3, 0.5}}, 1.5},
		{densityCase{Beta{}, 0, []float64{2, 3}}, 0.4},
		{densityCase{Uniform{}, 0, []float64{1, 3}}, 2},
	}
	for _, c := range cases {
		if m := c.c.d.Mean(c.c.params); math.Abs(m-c.mean) > smallDiff {
			tst.Errorf("%s: expected mean %v, got %v", c.c.d.Name(), c.mean, m)
		}
	}
}
