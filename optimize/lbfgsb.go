package optimize

import (
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"

	"bitbucket.org/Davydov/gonuts/mcmc"
)

// LBFGSB maximizes the log-probability with the limited-memory BFGS
// method using the analytic gradient of the model.
type LBFGSB struct {
	BaseOptimizer
	grad    []float64
	maxIter int
	// stopped makes the function infinite, so the line search
	// fails and the optimization ends.
	stopped bool
}

// NewLBFGSB creates a new L-BFGS-B optimizer for m.
func NewLBFGSB(m mcmc.Model) *LBFGSB {
	return &LBFGSB{
		BaseOptimizer: newBaseOptimizer(m),
	}
}

// Logger is called by the optimizer after every iteration.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	if l.repPeriod > 0 && l.i%l.repPeriod == 0 {
		log.Debugf("%d: L=%f", l.i, -info.F)
		l.PrintLine(info.X, -info.F)
	}
	if l.signalled() {
		l.stopped = true
	}
	if l.maxIter > 0 && l.i >= l.maxIter {
		log.Warningf("Iterations exceeded (%d)", l.maxIter)
		l.stopped = true
	}
}

// EvaluateFunction returns the negative log-probability.
func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	if l.stopped {
		return math.Inf(+1)
	}
	return -l.logProb(x)
}

// EvaluateGradient returns the gradient of the negative
// log-probability.
func (l *LBFGSB) EvaluateGradient(x []float64) []float64 {
	if l.grad == nil {
		l.grad = make([]float64, len(x))
	}
	l.setValues(x)
	l.model.Gradient(l.ids, l.grad)
	for i := range l.grad {
		l.grad[i] = -l.grad[i]
	}
	return l.grad
}

// Run starts the optimization from the current model state. The model
// is left at the best point found.
func (l *LBFGSB) Run(iterations int) error {
	if err := l.check(); err != nil {
		return err
	}
	l.maxIter = iterations
	x0 := l.values(nil)
	if l0 := l.logProb(x0); math.IsInf(l0, -1) {
		return mcmc.ErrZeroProbability
	}
	l.PrintHeader()

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-9)
	opt.SetGTolerance(1e-9)
	opt.SetLogger(l.Logger)

	_, exitStatus := opt.Minimize(l, x0)
	log.Info("Exit status: ", exitStatus)

	l.restoreMax()
	l.l = l.maxL
	l.PrintLine(l.maxLPar, l.maxL)
	log.Info("Finished LBFGSB")
	l.PrintFinal()
	return nil
}

// Summary returns the optimization summary.
func (l *LBFGSB) Summary() Summary {
	return l.summary("lbfgsb")
}
