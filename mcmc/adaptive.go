package mcmc

import (
	"fmt"
	"math"
)

// Adaptive tunes the proposal standard deviation of every latent
// variable towards a target acceptance rate using Robbins-Monro
// updates of log(sd).
type Adaptive struct {
	np         int
	pnames     []string
	sd         []float64
	t          []int
	accepted   []int
	updates    []int
	loct       []int
	delta      []bool
	vals       []chan float64
	sum        []float64
	sumsq      []float64
	converged  []bool
	nconverged int

	*AdaptiveParameters
}

// AdaptiveParameters are the tuning constants of Adaptive.
type AdaptiveParameters struct {
	// WSize is the number of last updates used to detect
	// convergence.
	WSize int
	// K is the number of proposals between updates of a variable.
	K int
	// Skip is the number of iterations before adaptation starts.
	Skip int
	// MaxUpdate stops the adaptation of a variable after this many
	// updates.
	MaxUpdate int
	// Epsilon is the coefficient of variation of log(sd) over the
	// window below which a variable is converged.
	Epsilon float64
	C       float64
	Nu      float64
	// Target is the acceptance rate to reach.
	Target float64
}

func square(x float64) float64 {
	return x * x
}

// NewAdaptiveParameters returns the default parameters. The target
// acceptance rate 0.44 is optimal for single-site updates.
func NewAdaptiveParameters() *AdaptiveParameters {
	return &AdaptiveParameters{
		WSize:     10,
		K:         20,
		Skip:      0,
		MaxUpdate: 2000,
		Epsilon:   5e-2,
		C:         1,
		Nu:        1,
		Target:    0.44,
	}
}

// NewAdaptive creates an adaptive proposal for np variables starting
// from sd.
func NewAdaptive(np int, pnames []string, sd float64, ap *AdaptiveParameters) (a *Adaptive) {
	a = &Adaptive{
		np:        np,
		pnames:    pnames,
		sd:        make([]float64, np),
		t:         make([]int, np),
		accepted:  make([]int, np),
		updates:   make([]int, np),
		loct:      make([]int, np),
		delta:     make([]bool, np),
		vals:      make([]chan float64, np),
		sum:       make([]float64, np),
		sumsq:     make([]float64, np),
		converged: make([]bool, np),

		AdaptiveParameters: ap,
	}

	for p := 0; p < np; p++ {
		a.sd[p] = sd
		a.vals[p] = make(chan float64, a.WSize)
	}

	return
}

func (a *Adaptive) String() string {
	return fmt.Sprintf("Adaptive MCMC (n=%v, K=%v, Skip=%v, MaxUpdate=%v, C=%v, Nu=%v, Target=%v)",
		a.np, a.K, a.Skip, a.MaxUpdate, a.C, a.Nu, a.Target)
}

// SD returns the current proposal standard deviation of p-th variable.
func (a *Adaptive) SD(p int) float64 {
	return a.sd[p]
}

// Converged returns the number of variables which stopped adapting.
func (a *Adaptive) Converged() int {
	return a.nconverged
}

// RobbinsMonro returns the step size and the acceptance rate error of
// the last batch of p-th variable. The step decreases every time the
// error changes sign.
func (a *Adaptive) RobbinsMonro(p int) (gamma, udelta float64) {
	udelta = float64(a.accepted[p])/float64(a.K) - a.Target
	if (udelta > 0 && !a.delta[p]) || (udelta < 0 && a.delta[p]) {
		a.loct[p]++
	}
	a.delta[p] = udelta > 0
	beta := 1 / math.Max(1, 1+a.Nu)
	gamma = a.C / math.Pow(float64(1+a.loct[p]), beta)
	return
}

// checkConvergence keeps a window of the last log(sd) values of p-th
// variable and stops the adaptation once it is stable.
func (a *Adaptive) checkConvergence(p int, val float64) {
	if len(a.vals[p]) == a.WSize {
		oldVal := <-a.vals[p]
		a.sum[p] -= oldVal
		a.sumsq[p] -= square(oldVal)
	}
	a.vals[p] <- val
	a.sum[p] += val
	a.sumsq[p] += square(val)

	if len(a.vals[p]) < a.WSize && a.updates[p] < a.MaxUpdate {
		return
	}
	n := float64(len(a.vals[p]))
	mean := a.sum[p] / n
	sd := math.Sqrt(math.Max(0, a.sumsq[p]/n-square(mean)))
	var reason string
	switch {
	case sd < a.Epsilon*math.Max(1, math.Abs(mean)):
		reason = "SD/mean"
	case a.updates[p] >= a.MaxUpdate:
		reason = "max_update"
	default:
		return
	}
	a.converged[p] = true
	a.nconverged++
	log.Infof("%s converged, sd=%v, reason: %s (%d/%d)", a.pnames[p], a.sd[p], reason, a.nconverged, a.np)
}

// Update records the outcome of a proposal for p-th variable.
func (a *Adaptive) Update(p int, accepted bool) {
	if a.converged[p] {
		return
	}
	if accepted {
		a.accepted[p]++
	}
	a.t[p]++
	if a.t[p]%a.K != 0 {
		return
	}

	gamma, udelta := a.RobbinsMonro(p)
	a.sd[p] *= math.Exp(gamma * udelta)
	a.accepted[p] = 0
	a.updates[p]++
	log.Debugf("%s sd=%v", a.pnames[p], a.sd[p])
	a.checkConvergence(p, math.Log(a.sd[p]))
}
