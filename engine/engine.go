package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/garnetlab/delaytool/cioq"
	"github.com/garnetlab/delaytool/qrta"
	"github.com/garnetlab/delaytool/schedule"
	"github.com/garnetlab/delaytool/topology"
)

// ErrCyclicTooLong is returned when the cyclic pass hits its
// iteration cap before the jitter sum stabilises.
var ErrCyclicTooLong = errors.New("engine: cyclic fixed point convergence too long")

// Result is the end-to-end triple of one (virtual link, destination)
// pair, in link-bytes.
type Result struct {
	VlinkID      int
	DestDeviceID int
	Dmin         int64
	Dmax         int64
	Jit          int64
}

// Option configures a Run.
type Option func(*options)

type options struct {
	log  *slog.Logger
	maps map[int]*cioq.Map
}

// WithLogger directs the engine's progress output (task counts,
// cyclic iterations) to the given logger. Defaults to discard.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCioqMaps overrides the default per-switch CIOQ assignment.
// Ignored under OQ.
func WithCioqMaps(maps map[int]*cioq.Map) Option {
	return func(o *options) {
		if maps != nil {
			o.maps = maps
		}
	}
}

// Run computes the worst-case end-to-end latencies of every
// (virtual link, destination) pair of the configuration. On success
// it also sets the E2E field of every destination leaf; on error no
// leaf is written and the returned slice is nil.
func Run(cfg *topology.Config, opts ...Option) ([]Result, error) {
	o := options{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maps == nil {
		o.maps = cioq.GenerateAll(cfg)
	}

	g := schedule.Build(cfg, o.maps)
	g.Order()
	o.log.Debug("task graph built",
		"tasks", len(g.Tasks()),
		"acyclic", len(g.AcyclicOrder),
		"cyclic", len(g.CyclicOrder))

	initDelays(cfg, g)

	// Acyclic pass: one computation per task, in topological order.
	for _, t := range g.AcyclicOrder {
		if err := calcDelayMax(t); err != nil {
			return nil, err
		}
	}

	nIter, err := runCyclic(cfg, g, o.log)
	if err != nil {
		return nil, err
	}
	o.log.Info("local delays calculated",
		"total", len(g.Tasks()),
		"acyclic", len(g.AcyclicOrder),
		"cyclic", len(g.CyclicOrder),
		"iterations", nIter)

	// Final extraction: the triple at a destination leaf is the delay
	// of the parent's P task toward the leaf's ingress port.
	var results []Result
	for _, vl := range cfg.Vlinks() {
		for _, destID := range vl.DstIDs() {
			leaf := vl.Dst(destID)
			t := g.Task(schedule.TaskID{VlinkID: vl.ID, OutPseudoID: leaf.In.ID, Elem: schedule.ElemP})
			leaf.E2E = t.Delay
			results = append(results, Result{
				VlinkID:      vl.ID,
				DestDeviceID: destID,
				Dmin:         t.Delay.Dmin(),
				Dmax:         t.Delay.Dmax(),
				Jit:          t.Delay.Jit(),
			})
		}
	}
	return results, nil
}

// initDelays seeds every task breadth-first along each routing tree:
// sources get their exact triple, every other task a transparent
// upper bound through its same-branch predecessor. The seeds only
// matter for the cyclic remainder; the acyclic pass overwrites them.
func initDelays(cfg *topology.Config, g *schedule.Graph) {
	elems := []schedule.Elem{schedule.ElemP}
	if cfg.Scheme == topology.CIOQ {
		elems = []schedule.Elem{schedule.ElemF, schedule.ElemP}
	}
	for _, vl := range cfg.Vlinks() {
		queue := []*topology.Vnode{vl.Src}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range cur.Next {
				queue = append(queue, next)
				for _, elem := range elems {
					t := g.Task(schedule.TaskID{VlinkID: vl.ID, OutPseudoID: next.In.ID, Elem: elem})
					if t == nil {
						// No fabric stage at a source end system.
						if elem != schedule.ElemF || cur.Device.Type != topology.End {
							panic(fmt.Sprintf("engine: missing task vl %d to port %d (%s)", vl.ID, next.In.ID, elem))
						}
						continue
					}
					calcDelayInit(t)
				}
			}
		}
	}
}

// calcDelayInit computes the final dmin and the seed dmax of a task.
func calcDelayInit(t *schedule.DelayTask) {
	var dmin, dmax int64
	if len(t.Inputs) == 0 {
		dmin = t.VL.Smin
		dmax = t.VL.Smax + t.VL.Jit0b
	} else {
		prev := t.Inputs[qrta.FlowKey{VlinkID: t.VL.ID, BranchID: t.BranchID()}]
		if prev == nil || !prev.Delay.Ready() {
			panic(fmt.Sprintf("engine: predecessor of %s not seeded", t.ID()))
		}
		dmin = prev.Delay.Dmin() + t.VL.Smin
		dmax = prev.Delay.Dmax() + t.VL.Smax
	}
	t.Delay = topology.NewDelayData(t.VL, dmin, dmax-dmin)
}

// calcDelayMax recomputes a task's worst case via its element's
// analysis; dmin is already final from the init pass.
func calcDelayMax(t *schedule.DelayTask) error {
	dmin := t.Delay.Dmin()
	var dmax int64
	if len(t.Inputs) == 0 {
		dmax = t.VL.Smax + t.VL.Jit0b
	} else {
		t.BindInputs()
		if err := t.Analysis.Calc(t.VL, t.BranchID()); err != nil {
			in := t.Next.In
			return fmt.Errorf("vl %d at output port %d of switch %d (%s): %w",
				t.VL.ID, in.OutPrev, in.PrevDevice.ID, t.Elem, err)
		}
		if got := t.Analysis.Result.Dmin(); got != dmin {
			panic(fmt.Sprintf("engine: dmin drifted for %s: init %d, analysis %d", t.ID(), dmin, got))
		}
		dmax = t.Analysis.Result.Dmax()
	}
	t.Delay = topology.NewDelayData(t.VL, dmin, dmax-dmin)
	t.Iter++
	return nil
}

// runCyclic iterates the cyclic remainder until the jitter sum
// repeats. The sum is non-decreasing across iterations; a decrease is
// a programming error and panics.
func runCyclic(cfg *topology.Config, g *schedule.Graph, log *slog.Logger) (uint64, error) {
	if len(g.CyclicOrder) == 0 {
		return 0, nil
	}
	log.Info("cyclic data dependencies between delay tasks, iterating",
		"tasks", len(g.CyclicOrder), "max_iterations", cfg.CyclicMaxIter)

	var nIter uint64
	sum, sumPre := int64(0), int64(-1)
	for sumPre < sum && (cfg.CyclicMaxIter == 0 || nIter < cfg.CyclicMaxIter) {
		sumPre = sum
		sum = 0
		// Busy periods are not shared across iterations.
		for _, t := range g.CyclicOrder {
			t.ClearBP()
		}
		for _, t := range g.CyclicOrder {
			if err := calcDelayMax(t); err != nil {
				return nIter, err
			}
			sum += t.Delay.Jit()
		}
		nIter++
		if sum < sumPre {
			panic(fmt.Sprintf("engine: cyclic jitter sum decreased: %d -> %d", sumPre, sum))
		}
		log.Debug("cyclic iteration", "n", nIter, "jitter_sum", sum)
	}
	if sumPre < sum {
		return nIter, fmt.Errorf("%w: no fixed point after %d iterations", ErrCyclicTooLong, nIter)
	}
	return nIter, nil
}
