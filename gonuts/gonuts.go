/*

Gonuts samples from the posterior of a Bayesian network of continuous
variables using the No-U-Turn sampler.

The model is described in a YAML file:

	vertices:
	  - {name: A, dist: gaussian, params: [20, 1]}
	  - {name: B, dist: gaussian, params: [20, 1]}
	  - {name: S, op: add, args: [A, B]}
	  - {name: C, dist: gaussian, params: [S, 1], observed: 46}
	monitor: [A, B, S]

The basic usage of gonuts looks like this:

	gonuts model.yaml

, this will draw 1000 samples with NUTS and print the trajectory.

You can find a starting point with an optimizer and store samples in
a database:

	gonuts -map lbfgsb -db samples.db model.yaml

To see all the options run:

	gonuts -h

*/
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/gonuts/checkpoint"
	"bitbucket.org/Davydov/gonuts/mcmc"
	"bitbucket.org/Davydov/gonuts/model"
	"bitbucket.org/Davydov/gonuts/optimize"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("gonuts")
var formatter = logging.MustStringFormatter(`%{message}`)

// Keys in the MAIN bucket of the database.
var (
	chainKey = []byte("chain")
	runKey   = []byte("run")
)

// Defaults used when neither the command line nor the model file set
// a value.
const (
	defaultSamples = 1000
	defaultStep    = 0.1
)

// command-line options
var (
	// application
	app = kingpin.New("gonuts", "No-U-Turn sampler for Bayesian networks").Version(version)

	// model
	modelFileName = app.Arg("model", "model description (YAML)").Required().ExistingFile()

	// sampler parameters
	method = app.Flag("method", "sampling method "+
		"(nuts: No-U-Turn sampler, "+
		"mh: Metropolis-Hastings), "+
		"overrides the model file").String()
	iterations = app.Flag("iter", "number of samples, overrides the model file").Int()
	step       = app.Flag("step", "NUTS leapfrog step size, overrides the model file").Float64()
	maxHeight  = app.Flag("maxheight", "maximum NUTS tree height (0 for no limit), overrides the model file").Default("-1").Int()
	mhSD       = app.Flag("sd", "Metropolis-Hastings proposal standard deviation").Default("1").Float64()
	adaptive   = app.Flag("adaptive", "adapt Metropolis-Hastings proposal widths to the target acceptance rate").Bool()
	report     = app.Flag("report", "report every N iterations").Default("10").Int()
	accept     = app.Flag("accept", "report acceptance rate (or tree statistics) every N iterations").Default("200").Int()
	burnin     = app.Flag("burnin", "number of samples to skip in the posterior summary").Default("0").Int()

	// starting point
	mapMethod = app.Flag("map", "find the maximum a posteriori starting point "+
		"(none, lbfgsb: limited-memory BFGS, simplex: downhill simplex, anneal: simulated annealing)").
		Default("none").Enum("none", "lbfgsb", "simplex", "anneal")
	mapIter    = app.Flag("mapiter", "maximum number of optimizer iterations").Default("1000").Int()
	annealSkip = app.Flag("annealskip", "simulated annealing iterations before cooling").Default("0").Int()
	probe      = app.Flag("probe", "number of attempts to draw a starting point with non-zero probability from the priors").Default("0").Int()
	startF     = app.Flag("start", "read start position from the trajectory file").ExistingFile()

	// technical
	seed       = app.Flag("seed", "random generator seed, default from the model file or time based").Default("-1").Int64()
	cpuProfile = app.Flag("cpuprofile", "write cpu profile to file").String()

	// input/output
	outLogF  = app.Flag("log", "write log to a file").String()
	outF     = app.Flag("out", "write sampling trajectory to a file").String()
	dbF      = app.Flag("db", "store samples and checkpoints in a bolt database").String()
	seconds  = app.Flag("checkpoint", "save checkpoint every N seconds").Default("60").Float64()
	plotF    = app.Flag("plot", "file name prefix for trace and histogram plots (PNG)").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

// readStart sets latent values from the last line of a trajectory
// file.
func readStart(n *model.Network, fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	values, err := optimize.ReadTrajectoryEnd(f)
	if err != nil {
		return err
	}
	for name, val := range values {
		v := n.Vertex(name)
		if v == nil || !v.Latent() {
			log.Warningf("Ignoring %s from the start file", name)
			continue
		}
		n.SetValue(v.ID(), val)
	}
	n.Propagate(n.Latents())
	return nil
}

// settings merges the command line with the model file settings.
func settings(s model.Settings) model.Settings {
	if *method != "" {
		s.Method = *method
	}
	if s.Method == "" {
		s.Method = "nuts"
	}
	if *iterations > 0 {
		s.Samples = *iterations
	}
	if s.Samples == 0 {
		s.Samples = defaultSamples
	}
	if *step > 0 {
		s.Step = *step
	}
	if s.Step == 0 {
		s.Step = defaultStep
	}
	if *maxHeight >= 0 {
		s.MaxHeight = *maxHeight
	}
	if *seed != -1 {
		s.Seed = *seed
	}
	if s.Seed == 0 {
		s.Seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	return s
}

// openStore opens the database, returning the checkpoint IO and the
// sample store. An unfinished run is continued.
func openStore(db *bolt.DB) (*checkpoint.CheckpointIO, *checkpoint.SampleStore, error) {
	cio := checkpoint.NewCheckpointIO(db, chainKey, *seconds)
	runID := uuid.New()
	data, err := cio.GetParameters()
	if err != nil {
		return nil, nil, err
	}
	if data != nil && !data.Final {
		b, err := checkpoint.LoadData(db, checkpoint.MAIN, runKey)
		if err != nil {
			return nil, nil, err
		}
		if runID, err = uuid.FromBytes(b); err != nil {
			return nil, nil, fmt.Errorf("reading run id: %w", err)
		}
		log.Noticef("Continuing run %v", runID)
	} else if err := checkpoint.SaveData(db, checkpoint.MAIN, runKey, runID[:]); err != nil {
		return nil, nil, err
	}
	store, err := checkpoint.NewSampleStore(db, runID)
	if err != nil {
		return nil, nil, err
	}
	return cio, store, nil
}

func run(summary *RunSummary) error {
	desc, err := model.LoadFile(*modelFileName)
	if err != nil {
		return err
	}
	n := desc.Network
	s := settings(desc.Sampler)
	summary.Settings = s
	summary.Seed = s.Seed
	log.Infof("Random seed=%v", s.Seed)
	src := mcmc.NewSource(s.Seed)

	if *startF != "" {
		if err := readStart(n, *startF); err != nil {
			return fmt.Errorf("reading start position: %w", err)
		}
	}

	if *probe > 0 {
		if err := n.ProbeForNonZeroProbability(*probe, src); err != nil {
			return err
		}
	}

	if *mapMethod != "none" {
		opt, err := optimize.New(*mapMethod, n, src)
		if err != nil {
			return err
		}
		if a, ok := opt.(*optimize.Annealer); ok {
			a.AnnealingSkip = *annealSkip
		}
		log.Infof("Searching for a starting point using %s.", *mapMethod)
		opt.SetOutput(io.Discard)
		opt.SetReportPeriod(0)
		opt.WatchSignals(os.Interrupt, syscall.SIGUSR2)
		if err := opt.Run(*mapIter); err != nil {
			return err
		}
		osum := opt.Summary()
		summary.Optimizer = &osum
	}

	f := os.Stdout
	if *outF != "" {
		f, err = os.Create(*outF)
		if err != nil {
			return fmt.Errorf("creating trajectory file: %w", err)
		}
		defer f.Close()
	}

	var sampler mcmc.Sampler
	switch s.Method {
	case "nuts":
		nuts := mcmc.NewNUTS(n, desc.Monitored, src)
		nuts.StepSize = s.Step
		nuts.MaxTreeHeight = s.MaxHeight
		nuts.AccPeriod = *accept
		sampler = nuts
	case "mh":
		mh := mcmc.NewMH(n, desc.Monitored, src)
		mh.SD = *mhSD
		mh.AccPeriod = *accept
		if *adaptive {
			mh.SetAdaptive(mcmc.NewAdaptiveParameters())
		}
		sampler = mh
	default:
		return fmt.Errorf("unknown sampling method: %s", s.Method)
	}
	log.Infof("Using %s sampling.", s.Method)

	samples := mcmc.NewSamples()
	sink := mcmc.MultiSink{samples}

	if *dbF != "" {
		db, err := bolt.Open(*dbF, 0666, nil)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		cio, store, err := openStore(db)
		if err != nil {
			return err
		}
		summary.RunID = store.RunID().String()
		sampler.SetCheckpointIO(cio)
		sink = append(sink, mcmc.NewStoreSink(store, n, desc.Monitored))
	}

	sampler.SetSink(sink)
	sampler.SetOutput(f)
	sampler.SetReportPeriod(*report)
	sampler.WatchSignals(os.Interrupt, syscall.SIGUSR2)

	if err := sampler.Run(s.Samples); err != nil {
		return err
	}
	summary.Sampler = sampler.Summary()
	summary.Posterior = posteriorSummary(n, samples, desc.Monitored, *burnin)

	if *plotF != "" {
		names := make(map[mcmc.VariableID]string, len(desc.Monitored))
		for _, id := range desc.Monitored {
			names[id] = n.Name(id)
		}
		if err := savePlots(*plotF, names, samples, desc.Monitored); err != nil {
			log.Error("Error creating plots:", err)
		}
	}
	return nil
}

func main() {
	startTime := time.Now()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, module := range []string{"gonuts", "mcmc", "model", "optimize", "checkpoint"} {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	summary := &RunSummary{
		Version:     version,
		CommandLine: os.Args,
	}
	if err := run(summary); err != nil {
		if errors.Is(err, mcmc.ErrZeroProbability) {
			log.Error("Try -probe to find a starting point")
		}
		log.Fatal(err)
	}
	summary.Time = time.Since(startTime).Seconds()
	log.Noticef("Running time: %v", time.Since(startTime))

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
