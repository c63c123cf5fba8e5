// Package optimize searches for the maximum a posteriori point of a
// model. It is used to find a good starting point for the samplers.
package optimize

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/gonuts/mcmc"
)

// log is the global logging variable.
var log = logging.MustGetLogger("optimize")

// Optimizer maximizes the log-probability of a model over its latent
// variables.
type Optimizer interface {
	SetOutput(io.Writer)
	SetReportPeriod(period int)
	WatchSignals(...os.Signal)
	Run(iterations int) error
	GetMaxL() float64
	Summary() Summary
}

// Summary is a short description of an optimization.
type Summary struct {
	Method     string             `json:"method"`
	Iterations int                `json:"iterations"`
	Calls      int                `json:"calls"`
	MaxLogProb float64            `json:"maxLogProb"`
	Parameters map[string]float64 `json:"parameters"`
}

// New returns an optimizer for model m given the method name. Only
// simulated annealing draws from src.
func New(method string, m mcmc.Model, src mcmc.Source) (Optimizer, error) {
	switch method {
	case "lbfgsb":
		return NewLBFGSB(m), nil
	case "simplex":
		return NewDS(m), nil
	case "anneal":
		return NewAnnealer(m, src), nil
	}
	return nil, fmt.Errorf("unknown optimization method: %s", method)
}

// BaseOptimizer holds the state shared by the optimizers.
type BaseOptimizer struct {
	model   mcmc.Model
	ids     []mcmc.VariableID
	names   []string
	i       int
	l       float64
	maxL    float64
	maxLPar []float64
	calls   int

	repPeriod int
	out       io.Writer
	sig       chan os.Signal
	// Quiet disables the trajectory output.
	Quiet bool
}

func newBaseOptimizer(m mcmc.Model) BaseOptimizer {
	ids := mcmc.NewKeySet(m.Latents()).IDs()
	o := BaseOptimizer{
		model:     m,
		ids:       ids,
		names:     make([]string, len(ids)),
		maxL:      math.Inf(-1),
		repPeriod: 10,
		out:       os.Stdout,
	}
	namer, _ := m.(mcmc.Namer)
	for i, id := range ids {
		if namer != nil {
			o.names[i] = namer.Name(id)
		} else {
			o.names[i] = "v" + id.String()
		}
	}
	return o
}

// SetOutput sets the trajectory output.
func (o *BaseOptimizer) SetOutput(w io.Writer) {
	o.out = w
}

// WatchSignals stops the optimization on one of the signals.
func (o *BaseOptimizer) WatchSignals(sigs ...os.Signal) {
	o.sig = make(chan os.Signal, 1)
	signal.Notify(o.sig, sigs...)
}

// signalled returns true if the optimization should stop.
func (o *BaseOptimizer) signalled() bool {
	select {
	case s := <-o.sig:
		log.Warningf("Received signal %v, exiting.", s)
		return true
	default:
		return false
	}
}

// SetReportPeriod sets the number of iterations between trajectory
// lines.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// check validates the model before optimization.
func (o *BaseOptimizer) check() error {
	if len(o.ids) == 0 {
		return fmt.Errorf("%w: model has no latent variables", mcmc.ErrInvalidArgument)
	}
	return nil
}

// values reads the latent values from the model into dst.
func (o *BaseOptimizer) values(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(o.ids))
	}
	for i, id := range o.ids {
		dst[i] = o.model.Value(id)
	}
	return dst
}

// setValues applies x to the model.
func (o *BaseOptimizer) setValues(x []float64) {
	for i, id := range o.ids {
		o.model.SetValue(id, x[i])
	}
	o.model.Propagate(o.ids)
}

// logProb evaluates the model at x and keeps track of the maximum.
func (o *BaseOptimizer) logProb(x []float64) float64 {
	o.setValues(x)
	l := o.model.LogProb()
	o.calls++
	if math.IsNaN(l) {
		l = math.Inf(-1)
	}
	if l > o.maxL {
		o.maxL = l
		o.maxLPar = append(o.maxLPar[:0], x...)
	}
	return l
}

// restoreMax sets the model to the best point found.
func (o *BaseOptimizer) restoreMax() {
	if o.maxLPar != nil {
		o.setValues(o.maxLPar)
	}
}

// PrintHeader prints the trajectory header.
func (o *BaseOptimizer) PrintHeader() {
	if !o.Quiet {
		fmt.Fprintf(o.out, "iteration\tlogprob\t%s\n", o.ParameterNamesString())
	}
}

// PrintLine prints a trajectory line.
func (o *BaseOptimizer) PrintLine(x []float64, l float64) {
	if !o.Quiet {
		fmt.Fprintf(o.out, "%d\t%f\t%s\n", o.i, l, o.ParameterString(x))
	}
}

// PrintFinal logs the best point.
func (o *BaseOptimizer) PrintFinal() {
	log.Noticef("Maximum log-probability: %v", o.maxL)
	log.Infof("Function calls: %v", o.calls)
	for i, name := range o.names {
		if o.maxLPar != nil {
			log.Infof("%s=%v", name, o.maxLPar[i])
		}
	}
}

// ParameterNamesString returns tab-separated latent names.
func (o *BaseOptimizer) ParameterNamesString() (s string) {
	for i, name := range o.names {
		if i != 0 {
			s += "\t"
		}
		s += name
	}
	return
}

// ParameterString returns tab-separated values.
func (o *BaseOptimizer) ParameterString(x []float64) (s string) {
	for i, v := range x {
		if i != 0 {
			s += "\t"
		}
		s += strconv.FormatFloat(v, 'f', 6, 64)
	}
	return
}

// GetMaxL returns the maximum log-probability found.
func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

// GetMaxLParameters returns the best latent values by name.
func (o *BaseOptimizer) GetMaxLParameters() map[string]float64 {
	res := make(map[string]float64, len(o.names))
	for i, name := range o.names {
		if o.maxLPar != nil {
			res[name] = o.maxLPar[i]
		}
	}
	return res
}

func (o *BaseOptimizer) summary(method string) Summary {
	return Summary{
		Method:     method,
		Iterations: o.i,
		Calls:      o.calls,
		MaxLogProb: o.maxL,
		Parameters: o.GetMaxLParameters(),
	}
}
