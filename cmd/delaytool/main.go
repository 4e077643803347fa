// Command delaytool computes worst-case end-to-end latencies for
// every virtual link of an afdxxml configuration and writes them back
// as maxDelay/maxJit attributes.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/garnetlab/delaytool/configxml"
	"github.com/garnetlab/delaytool/engine"
	"github.com/garnetlab/delaytool/logging"
	"github.com/garnetlab/delaytool/stats"
	"github.com/garnetlab/delaytool/topology"
)

const (
	defaultFabrics       = 8
	defaultBpMaxIter     = 100000
	defaultCyclicMaxIter = 100

	schemeEnvVar  = "DELAYTOOL_SCHEME"
	fabricsEnvVar = "DELAYTOOL_FABRICS"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	schemeFlag := flag.StringP("scheme", "s", "oq", "switch scheme: oq|cioq (or set DELAYTOOL_SCHEME)")
	fabricsFlag := flag.Int("fabrics", defaultFabrics, "CIOQ fabrics per switch, multiple of 2 (or set DELAYTOOL_FABRICS)")
	bpMaxIterFlag := flag.Uint64("bp-max-iter", defaultBpMaxIter, "busy-period iteration cap, 0 disables")
	cyclicMaxIterFlag := flag.Uint64("cyclic-max-iter", defaultCyclicMaxIter, "cyclic-pass iteration cap, 0 disables")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return fmt.Errorf("expected arguments: <input.xml> <output.xml>")
	}
	fileIn, fileOut := flag.Arg(0), flag.Arg(1)

	// Load .env. godotenv does not override existing env vars, so the
	// process environment takes precedence.
	_ = godotenv.Load()

	if env := os.Getenv(schemeEnvVar); env != "" && !flag.CommandLine.Changed("scheme") {
		*schemeFlag = env
	}
	if env := os.Getenv(fabricsEnvVar); env != "" && !flag.CommandLine.Changed("fabrics") {
		n, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("bad %s value %q", fabricsEnvVar, env)
		}
		*fabricsFlag = n
	}

	scheme, err := topology.ParseScheme(*schemeFlag)
	if err != nil {
		return err
	}

	log := logging.New(*verboseFlag)
	log.Info("delaytool starting", "input", fileIn, "scheme", scheme.String())

	in, err := os.Open(fileIn)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	doc, err := configxml.Decode(in)
	if err != nil {
		return err
	}
	params, err := doc.Params(configxml.Options{
		Scheme:        scheme,
		Fabrics:       *fabricsFlag,
		BpMaxIter:     *bpMaxIterFlag,
		CyclicMaxIter: *cyclicMaxIterFlag,
	})
	if err != nil {
		return err
	}
	cfg, err := topology.Build(params)
	if err != nil {
		return err
	}

	usage := stats.PortUsage(cfg)
	summary := stats.Summarize(usage)
	log.Info("bandwidth usage",
		"ports", summary.Ports,
		"min", fmt.Sprintf("%.3f", summary.Min),
		"mean", fmt.Sprintf("%.3f", summary.Mean),
		"max", fmt.Sprintf("%.3f", summary.Max))
	for _, port := range summary.Overloaded {
		log.Warn("port over-subscribed", "port", port, "usage", fmt.Sprintf("%.3f", usage[port]))
	}

	results, err := engine.Run(cfg, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("calculating delays: %w", err)
	}
	for _, r := range results {
		log.Debug("e2e delay",
			"vl", r.VlinkID, "dest", r.DestDeviceID,
			"max_delay_lb", r.Dmax, "jit_lb", r.Jit,
			"max_delay_us", cfg.LinkByteToUs(r.Dmax), "jit_us", cfg.LinkByteToUs(r.Jit))
	}

	if err := configxml.Apply(doc, cfg); err != nil {
		return err
	}
	out, err := os.Create(fileOut)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer out.Close()
	if err := configxml.Encode(out, doc); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	log.Info("done", "pairs", len(results), "output", fileOut)
	return nil
}
