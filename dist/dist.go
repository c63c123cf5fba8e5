// Package dist implements log-densities of continuous distributions
// together with their derivatives.
package dist

import (
	"fmt"
	"math"
	"strings"

	"github.com/gonum/mathext"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source is a random number source. *rand.Rand from math/rand
// satisfies it.
type Source interface {
	Uint64() uint64
	Float64() float64
	NormFloat64() float64
}

// expSource feeds a Source to the gonum distributions.
type expSource struct {
	Source
}

// Seed is a no-op, the owner of the underlying source seeds it.
func (expSource) Seed(uint64) {}

// wrap returns nil for a nil source, distuv then uses the global
// generator.
func wrap(src Source) rand.Source {
	if src == nil {
		return nil
	}
	return expSource{src}
}

// Density is a univariate probability density with parameters.
type Density interface {
	// Name returns the distribution name.
	Name() string
	// NParams returns the number of parameters.
	NParams() int
	// LogPdf returns the log-density at x, -Inf outside of the
	// support or for invalid parameters.
	LogPdf(x float64, params []float64) float64
	// DLogPdf returns the derivative of LogPdf with respect to x and
	// stores derivatives with respect to the parameters in dparams.
	DLogPdf(x float64, params []float64, dparams []float64) (dx float64)
	// Sample draws a random value.
	Sample(src Source, params []float64) float64
	// Mean returns the expectation.
	Mean(params []float64) float64
}

// ByName returns a density given its name.
func ByName(name string) (Density, error) {
	switch strings.ToLower(name) {
	case "gaussian", "normal":
		return Gaussian{}, nil
	case "exponential":
		return Exponential{}, nil
	case "gamma":
		return Gamma{}, nil
	case "beta":
		return Beta{}, nil
	case "uniform":
		return Uniform{}, nil
	case "flat":
		return Flat{}, nil
	}
	return nil, fmt.Errorf("unknown distribution: %s", name)
}

// QuantileNormal returns quantile for normal distribution.
func QuantileNormal(prob float64) float64 {
	return mathext.NormalQuantile(prob)
}

// zero sets all the values of s to 0 and returns 0. Used outside of
// the support.
func zero(s []float64) float64 {
	for i := range s {
		s[i] = 0
	}
	return 0
}

var negInf = math.Inf(-1)

// Gaussian is the normal distribution with parameters mean and
// standard deviation.
type Gaussian struct{}

func (Gaussian) Name() string { return "gaussian" }
func (Gaussian) NParams() int { return 2 }

func (Gaussian) dist(params []float64, src Source) distuv.Normal {
	return distuv.Normal{Mu: params[0], Sigma: params[1], Src: wrap(src)}
}

func (g Gaussian) LogPdf(x float64, params []float64) float64 {
	if params[1] <= 0 {
		return negInf
	}
	return g.dist(params, nil).LogProb(x)
}

func (g Gaussian) DLogPdf(x float64, params []float64, dparams []float64) float64 {
	if params[1] <= 0 {
		return zero(dparams)
	}
	d := g.dist(params, nil)
	d.Score(dparams, x)
	return d.ScoreInput(x)
}

func (Gaussian) Mean(params []float64) float64 { return params[0] }

func (g Gaussian) Sample(src Source, params []float64) float64 {
	return g.dist(params, src).Rand()
}

// Exponential is the exponential distribution with rate parameter.
type Exponential struct{}

func (Exponential) Name() string { return "exponential" }
func (Exponential) NParams() int { return 1 }

func (Exponential) dist(params []float64, src Source) distuv.Exponential {
	return distuv.Exponential{Rate: params[0], Src: wrap(src)}
}

func (e Exponential) LogPdf(x float64, params []float64) float64 {
	if params[0] <= 0 || x < 0 {
		return negInf
	}
	return e.dist(params, nil).LogProb(x)
}

// DLogPdf is the right derivative at zero.
func (Exponential) DLogPdf(x float64, params []float64, dparams []float64) float64 {
	rate := params[0]
	if rate <= 0 || x < 0 {
		return zero(dparams)
	}
	dparams[0] = 1/rate - x
	return -rate
}

func (e Exponential) Mean(params []float64) float64 { return e.dist(params, nil).Mean() }

func (e Exponential) Sample(src Source, params []float64) float64 {
	return e.dist(params, src).Rand()
}

// Gamma is the gamma distribution with shape and scale parameters.
type Gamma struct{}

func (Gamma) Name() string { return "gamma" }
func (Gamma) NParams() int { return 2 }

// dist converts the scale to the rate used by distuv.
func (Gamma) dist(params []float64, src Source) distuv.Gamma {
	return distuv.Gamma{Alpha: params[0], Beta: 1 / params[1], Src: wrap(src)}
}

func (g Gamma) LogPdf(x float64, params []float64) float64 {
	if params[0] <= 0 || params[1] <= 0 || x <= 0 {
		return negInf
	}
	return g.dist(params, nil).LogProb(x)
}

func (Gamma) DLogPdf(x float64, params []float64, dparams []float64) float64 {
	shape, scale := params[0], params[1]
	if shape <= 0 || scale <= 0 || x <= 0 {
		return zero(dparams)
	}
	dparams[0] = math.Log(x) - math.Log(scale) - mathext.Digamma(shape)
	dparams[1] = x/(scale*scale) - shape/scale
	return (shape-1)/x - 1/scale
}

func (g Gamma) Mean(params []float64) float64 { return g.dist(params, nil).Mean() }

func (g Gamma) Sample(src Source, params []float64) float64 {
	return g.dist(params, src).Rand()
}

// Beta is the beta distribution with two shape parameters.
type Beta struct{}

func (Beta) Name() string { return "beta" }
func (Beta) NParams() int { return 2 }

func (Beta) dist(params []float64, src Source) distuv.Beta {
	return distuv.Beta{Alpha: params[0], Beta: params[1], Src: wrap(src)}
}

// LogPdf checks the parameters itself since distuv.Beta panics on
// non-positive shapes.
func (b Beta) LogPdf(x float64, params []float64) float64 {
	if params[0] <= 0 || params[1] <= 0 || x <= 0 || x >= 1 {
		return negInf
	}
	return b.dist(params, nil).LogProb(x)
}

func (Beta) DLogPdf(x float64, params []float64, dparams []float64) float64 {
	a, b := params[0], params[1]
	if a <= 0 || b <= 0 || x <= 0 || x >= 1 {
		return zero(dparams)
	}
	dab := mathext.Digamma(a + b)
	dparams[0] = math.Log(x) - mathext.Digamma(a) + dab
	dparams[1] = math.Log1p(-x) - mathext.Digamma(b) + dab
	return (a-1)/x - (b-1)/(1-x)
}

func (b Beta) Mean(params []float64) float64 { return b.dist(params, nil).Mean() }

func (b Beta) Sample(src Source, params []float64) float64 {
	return b.dist(params, src).Rand()
}

// Uniform is the continuous uniform distribution on [min, max].
type Uniform struct{}

func (Uniform) Name() string { return "uniform" }
func (Uniform) NParams() int { return 2 }

func (Uniform) dist(params []float64, src Source) distuv.Uniform {
	return distuv.Uniform{Min: params[0], Max: params[1], Src: wrap(src)}
}

func (u Uniform) LogPdf(x float64, params []float64) float64 {
	if params[1] <= params[0] || x < params[0] || x > params[1] {
		return negInf
	}
	return u.dist(params, nil).LogProb(x)
}

func (Uniform) DLogPdf(x float64, params []float64, dparams []float64) float64 {
	min, max := params[0], params[1]
	if max <= min || x < min || x > max {
		return zero(dparams)
	}
	dparams[0] = 1 / (max - min)
	dparams[1] = -1 / (max - min)
	return 0
}

func (u Uniform) Mean(params []float64) float64 { return u.dist(params, nil).Mean() }

func (u Uniform) Sample(src Source, params []float64) float64 {
	return u.dist(params, src).Rand()
}

// Flat is the improper uniform density on the real line. It is used
// for variables whose density is given by a factor.
type Flat struct{}

func (Flat) Name() string { return "flat" }
func (Flat) NParams() int { return 0 }

func (Flat) LogPdf(x float64, params []float64) float64 { return 0 }

func (Flat) DLogPdf(x float64, params, dparams []float64) float64 { return 0 }

func (Flat) Mean(params []float64) float64 { return 0 }

// Sample draws from the standard normal distribution.
func (Flat) Sample(src Source, params []float64) float64 {
	return src.NormFloat64()
}
