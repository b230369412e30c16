/*

Gohmc samples from log-density targets with adaptive Hamiltonian
Monte Carlo.

The basic usage of gohmc looks like this:

	gohmc normal

, this will run one chain on the standard normal distribution with
1000 warmup and 1000 sampling iterations.

You can change the target, the kernel and the number of chains:

	gohmc -dim 10 -kernel hmcda -chains 4 funnel

The settings can also be read from a YAML file (-config), the
command-line flags override the file.

To see all the options run:

	gohmc -h

*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/gohmc/dist"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("gohmc")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	// application
	app = kingpin.New("gohmc", "adaptive Hamiltonian Monte Carlo sampler").Version(version)

	// target
	targetDesc = app.Arg("target", "target distribution ("+strings.Join(dist.Names(), ", ")+
		"), optionally with parameters, e.g. beta:2,5").Required().String()
	dim   = app.Flag("dim", "number of dimensions for the targets of variable dimension").Default("2").Int()
	space = app.Flag("space", "comma-separated variables to sample, others are fixed at the start").String()

	// sampler, negative or empty values keep the configuration
	configF      = app.Flag("config", "read sampler settings from a YAML file").ExistingFile()
	iterations   = app.Flag("iter", "number of sampling iterations").Default("-1").Int()
	warmup       = app.Flag("warmup", "number of warmup iterations").Default("-1").Int()
	kernel       = app.Flag("kernel", "transition kernel (hmc: fixed number of steps, hmcda: fixed trajectory length)").Enum("hmc", "hmcda")
	steps        = app.Flag("steps", "number of leapfrog steps (hmc)").Default("-1").Int()
	length       = app.Flag("length", "trajectory length (hmcda)").Default("-1").Float64()
	stepSize     = app.Flag("eps", "initial step size").Default("-1").Float64()
	noSearch     = app.Flag("nosearch", "don't search for the initial step size").Bool()
	targetAccept = app.Flag("delta", "target acceptance probability").Default("-1").Float64()
	metric       = app.Flag("metric", "preconditioner (unit, diagonal or dense)").Enum("unit", "diagonal", "dense")
	report       = app.Flag("report", "report every N iterations").Default("-1").Int()

	// chains
	nChains = app.Flag("chains", "number of chains").Default("1").Int()
	start   = app.Flag("start", "starting position, comma or space separated").String()
	initM   = app.Flag("init", "initialization when no start is given "+
		"(zero, random: uniform in [-2, 2], map: maximum of the log density)").Default("zero").Enum("zero", "random", "map")

	// checkpoints
	checkpointF      = app.Flag("checkpoint", "checkpoint database file").String()
	checkpointPeriod = app.Flag("checkpoint-period", "seconds between checkpoints").Default("60").Float64()
	resume           = app.Flag("resume", "continue the chains from the checkpoint").Bool()

	// technical
	nThreads    = app.Flag("nt", "number of threads to use").Int()
	seed        = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	cpuProfile  = app.Flag("cpuprofile", "write cpu profile to file").String()
	metricsAddr = app.Flag("metrics", "serve prometheus metrics on the address, e.g. :9090").String()

	// input/output
	outLogF  = app.Flag("log", "write log to a file").String()
	outF     = app.Flag("out", "write draws to a file").String()
	plotF    = app.Flag("plot", "write trace plot to a file (png, svg or pdf)").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

func main() {
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
	for _, module := range []string{"gohmc", "hmc", "optimize", "checkpoint"} {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	runtime.GOMAXPROCS(*nThreads)

	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.", effectiveNThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *metricsAddr != "" {
		serveMetrics(*metricsAddr)
	}

	conf, err := loadConfig(*configF)
	if err != nil {
		log.Fatal(err)
	}
	if err := applyFlags(conf); err != nil {
		log.Fatal(err)
	}
	if conf.Seed == timeSeed {
		conf.Seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	*seed = conf.Seed
	log.Infof("Random seed=%v", *seed)
	log.Noticef("Sampler: %v", conf)

	startTime := time.Now()
	summary, err := run(conf)
	if err != nil {
		log.Fatal(err)
	}
	summary.Version = version
	summary.CommandLine = os.Args
	summary.Seed = *seed
	summary.NThreads = effectiveNThreads
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
