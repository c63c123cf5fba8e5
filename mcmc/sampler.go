package mcmc

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/gonuts/checkpoint"
)

// log is the global logging variable.
var log = logging.MustGetLogger("mcmc")

// Sampler is a Markov chain Monte Carlo sampler.
type Sampler interface {
	SetOutput(io.Writer)
	SetReportPeriod(period int)
	SetCheckpointIO(*checkpoint.CheckpointIO)
	SetSink(Sink)
	WatchSignals(...os.Signal)
	Run(sampleCount int) error
	Summary() Summary
}

// Summary is a short description of a finished run.
type Summary struct {
	Method       string  `json:"method"`
	Samples      int     `json:"samples"`
	StartLogProb float64 `json:"startLogProb"`
	FinalLogProb float64 `json:"finalLogProb"`
	MaxLogProb   float64 `json:"maxLogProb"`
	// AcceptanceRate is only reported by Metropolis-Hastings.
	AcceptanceRate float64 `json:"acceptanceRate,omitempty"`
	// Stats are only reported by NUTS.
	Stats *Stats `json:"stats,omitempty"`
	// Time is the sampling time in seconds.
	Time float64 `json:"time"`
}

// BaseSampler implements the functionality shared by samplers:
// trajectory output, signal handling, checkpoints and sample
// delivery.
type BaseSampler struct {
	model     Model
	keys      *KeySet
	monitored []VariableID
	// names are the latent names in the key order.
	names   []string
	nameIDs map[string]VariableID

	i         int
	l         float64
	maxL      float64
	startL    float64
	repPeriod int
	// AccPeriod is the number of iterations between acceptance
	// rate reports.
	AccPeriod int
	out       io.Writer
	sig       chan os.Signal
	cio       *checkpoint.CheckpointIO
	startTime time.Time
	deltaT    float64
	// Sink receives every sample produced.
	Sink Sink
	// Quiet disables the trajectory output.
	Quiet bool
}

func newBaseSampler(m Model, monitored []VariableID) BaseSampler {
	keys := NewKeySet(m.Latents())
	b := BaseSampler{
		model:     m,
		keys:      keys,
		monitored: NewKeySet(monitored).IDs(),
		names:     make([]string, keys.Len()),
		nameIDs:   make(map[string]VariableID, keys.Len()),
		repPeriod: 10,
		AccPeriod: 100,
		out:       os.Stdout,
		maxL:      math.Inf(-1),
	}
	for i, id := range keys.IDs() {
		b.names[i] = variableName(m, id)
		b.nameIDs[b.names[i]] = id
	}
	return b
}

// SetOutput sets the trajectory output.
func (b *BaseSampler) SetOutput(w io.Writer) {
	b.out = w
}

// SetReportPeriod sets the number of iterations between trajectory
// lines.
func (b *BaseSampler) SetReportPeriod(period int) {
	b.repPeriod = period
}

// SetCheckpointIO enables checkpointing.
func (b *BaseSampler) SetCheckpointIO(cio *checkpoint.CheckpointIO) {
	b.cio = cio
}

// SetSink sets the sink receiving the samples.
func (b *BaseSampler) SetSink(s Sink) {
	b.Sink = s
}

// WatchSignals makes the sampler stop after the current iteration
// when one of the signals is received.
func (b *BaseSampler) WatchSignals(sigs ...os.Signal) {
	b.sig = make(chan os.Signal, 1)
	signal.Notify(b.sig, sigs...)
}

// signalled returns true if the sampler should stop.
func (b *BaseSampler) signalled() bool {
	select {
	case s := <-b.sig:
		log.Warningf("Received signal %v, exiting.", s)
		return true
	default:
		return false
	}
}

// check validates the common settings.
func (b *BaseSampler) check(sampleCount int) error {
	if sampleCount < 1 {
		return fmt.Errorf("%w: sample count %d < 1", ErrInvalidArgument, sampleCount)
	}
	if b.keys.Len() == 0 {
		return fmt.Errorf("%w: model has no continuous latent variables", ErrInvalidArgument)
	}
	return nil
}

// start evaluates the initial point and starts the timer.
func (b *BaseSampler) start() error {
	b.startTime = time.Now()
	setPosition(b.model, position(b.model, b.keys))
	b.l = b.model.LogProb()
	if math.IsNaN(b.l) || math.IsInf(b.l, 0) {
		return fmt.Errorf("%w (lnP=%v)", ErrZeroProbability, b.l)
	}
	b.startL = b.l
	return nil
}

// finish records the sampling time.
func (b *BaseSampler) finish() {
	b.deltaT = time.Since(b.startTime).Seconds()
	log.Noticef("Finished sampling, %d iterations, lnP=%f, time %v", b.i, b.l, time.Duration(b.deltaT*float64(time.Second)))
}

// emit delivers a sample and updates the trajectory.
func (b *BaseSampler) emit(s Sample, l float64) error {
	b.l = l
	if l > b.maxL {
		b.maxL = l
	}
	b.PrintLine(s, false)
	if b.Sink != nil {
		if err := b.Sink.Add(s); err != nil {
			return fmt.Errorf("storing sample %d: %w", b.i, err)
		}
	}
	return nil
}

// PrintHeader prints the trajectory header.
func (b *BaseSampler) PrintHeader() {
	if !b.Quiet {
		fmt.Fprintf(b.out, "iteration\tlogprob\t%s\n", b.ParameterNamesString())
	}
}

// PrintLine prints a trajectory line every report period or if force
// is true.
func (b *BaseSampler) PrintLine(s Sample, force bool) {
	if b.Quiet || (!force && (b.repPeriod <= 0 || b.i%b.repPeriod != 0)) {
		return
	}
	log.Debugf("%d: L=%f", b.i, b.l)
	fmt.Fprintf(b.out, "%d\t%f\t%s\n", b.i, b.l, b.ParameterString(s))
}

// ParameterNamesString returns tab-separated monitored variable names.
func (b *BaseSampler) ParameterNamesString() (s string) {
	for i, id := range b.monitored {
		if i != 0 {
			s += "\t"
		}
		s += variableName(b.model, id)
	}
	return
}

// ParameterString returns tab-separated monitored values of a sample.
func (b *BaseSampler) ParameterString(smp Sample) (s string) {
	for i, id := range b.monitored {
		if i != 0 {
			s += "\t"
		}
		s += strconv.FormatFloat(smp[id], 'f', 6, 64)
	}
	return
}

// Monitored returns the monitored variables in order.
func (b *BaseSampler) Monitored() []VariableID {
	return b.monitored
}

// saveCheckpoint stores the chain state at position q after iteration
// iter was completed. Unless force is set, it only saves when the
// last checkpoint is old.
func (b *BaseSampler) saveCheckpoint(q StateVector, iter int, final, force bool) {
	if b.cio == nil {
		return
	}
	if !force && !b.cio.Old() {
		return
	}
	data := &checkpoint.CheckpointData{
		Parameters: make(map[string]float64, q.Len()),
		LogProb:    b.l,
		Iter:       iter,
		Final:      final,
	}
	for i, name := range b.names {
		data.Parameters[name] = q.At(i)
	}
	if err := b.cio.Save(data); err == nil {
		log.Debugf("Checkpoint saved at iteration %d", iter)
	}
}

// alignSink drops the samples stored after the restored iteration, so
// that a resumed chain keeps exactly one sample per iteration.
func (b *BaseSampler) alignSink(next int) error {
	t, ok := b.Sink.(Truncater)
	if !ok {
		return nil
	}
	if err := t.Truncate(next); err != nil {
		return fmt.Errorf("aligning stored samples with iteration %d: %w", next, err)
	}
	return nil
}

// restore loads the last checkpoint into the model. It returns the
// iteration to continue from, 0 for a finished chain.
func (b *BaseSampler) restore() (next int, err error) {
	if b.cio == nil {
		return 0, nil
	}
	data, err := b.cio.GetParameters()
	if err != nil || data == nil {
		return 0, err
	}
	for name, val := range data.Parameters {
		id, ok := b.nameIDs[name]
		if !ok {
			return 0, fmt.Errorf("checkpoint has unknown variable %q", name)
		}
		b.model.SetValue(id, val)
	}
	b.model.Propagate(b.keys.IDs())
	if data.Final {
		log.Notice("Starting a new chain from the finished checkpoint")
		return 0, nil
	}
	return data.Iter + 1, nil
}

// summary fills the fields common to all samplers.
func (b *BaseSampler) summary(method string) Summary {
	return Summary{
		Method:       method,
		Samples:      b.i,
		StartLogProb: b.startL,
		FinalLogProb: b.l,
		MaxLogProb:   b.maxL,
		Time:         b.deltaT,
	}
}
