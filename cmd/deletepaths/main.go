// Command deletepaths prunes virtual-link paths from an afdxxml
// configuration until the delay task graph is acyclic.
package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/garnetlab/delaytool/configxml"
	"github.com/garnetlab/delaytool/deletepaths"
	"github.com/garnetlab/delaytool/logging"
	"github.com/garnetlab/delaytool/topology"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	schemeFlag := flag.StringP("scheme", "s", "oq", "switch scheme: oq|cioq")
	fabricsFlag := flag.Int("fabrics", 8, "CIOQ fabrics per switch, multiple of 2")
	randomFlag := flag.BoolP("random", "r", false, "randomise which cycle member is pruned")
	seedFlag := flag.Int64("seed", 0, "seed for the randomised choice of cycle member")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return fmt.Errorf("expected arguments: <input.xml> <output.xml>")
	}
	fileIn, fileOut := flag.Arg(0), flag.Arg(1)

	scheme, err := topology.ParseScheme(*schemeFlag)
	if err != nil {
		return err
	}
	log := logging.New(*verboseFlag)

	in, err := os.Open(fileIn)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	doc, err := configxml.Decode(in)
	in.Close()
	if err != nil {
		return err
	}

	seed := *seedFlag
	for deleted := 0; ; {
		params, err := doc.Params(configxml.Options{Scheme: scheme, Fabrics: *fabricsFlag})
		if err != nil {
			return err
		}
		cfg, err := topology.Build(params)
		if err != nil {
			return err
		}

		var opts []deletepaths.Option
		if *randomFlag {
			opts = append(opts, deletepaths.WithShuffle(seed))
			seed++
		}
		err = deletepaths.Detect(cfg, opts...)
		if err == nil {
			log.Info("task graph acyclic", "paths_deleted", deleted)
			break
		}
		var cycle *deletepaths.CycleError
		if !errors.As(err, &cycle) {
			return err
		}
		log.Info("pruning cycle member", "vl", cycle.VlinkID, "dests", cycle.DestIDs)
		prunePaths(doc, cycle.VlinkID, cycle.DestIDs)
		deleted += len(cycle.DestIDs)
	}

	out, err := os.Create(fileOut)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer out.Close()
	return configxml.Encode(out, doc)
}

// prunePaths removes the virtual link's paths to the given
// destinations from the document, dropping the link entirely when no
// path remains.
func prunePaths(doc *configxml.Document, vlID int, dests []int) {
	drop := make(map[int]bool, len(dests))
	for _, d := range dests {
		drop[d] = true
	}
	items := doc.VirtualLinks.Items[:0]
	for _, vl := range doc.VirtualLinks.Items {
		if vl.Number == vlID {
			paths := vl.Paths[:0]
			for _, p := range vl.Paths {
				if !drop[p.Dest] {
					paths = append(paths, p)
				}
			}
			vl.Paths = paths
			if len(vl.Paths) == 0 {
				continue
			}
		}
		items = append(items, vl)
	}
	doc.VirtualLinks.Items = items
}
