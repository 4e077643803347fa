package deletepaths

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/garnetlab/delaytool/cioq"
	"github.com/garnetlab/delaytool/schedule"
	"github.com/garnetlab/delaytool/topology"
)

// ErrCycle is the class of every CycleError.
var ErrCycle = errors.New("deletepaths: cyclic data dependencies")

// CycleError reports a cyclic remainder together with a remediation
// hint: deleting the named virtual link's paths to the named
// destinations removes the reported cycle member from the graph.
type CycleError struct {
	VlinkID int
	DestIDs []int
}

// Error formats the hint for humans.
func (e *CycleError) Error() string {
	return fmt.Sprintf("deletepaths: cyclic data dependencies; delete paths of vl %d to devices %v", e.VlinkID, e.DestIDs)
}

// Is makes errors.Is(err, ErrCycle) match.
func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// Option configures Detect.
type Option func(*options)

type options struct {
	shuffle bool
	seed    int64
}

// WithShuffle randomises which cyclic task the hint is derived from,
// seeded for reproducibility.
func WithShuffle(seed int64) Option {
	return func(o *options) {
		o.shuffle = true
		o.seed = seed
	}
}

// Detect builds and orders the task graph of the configuration.
// It returns nil when the graph is acyclic, and a *CycleError naming
// one cyclic task's virtual link and the destinations downstream of
// it otherwise.
func Detect(cfg *topology.Config, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	g := schedule.Build(cfg, cioq.GenerateAll(cfg))
	g.Order()
	if g.Acyclic() {
		return nil
	}

	idx := 0
	if o.shuffle {
		idx = rand.New(rand.NewSource(o.seed)).Intn(len(g.CyclicOrder))
	}
	task := g.CyclicOrder[idx]

	var dests []int
	for _, leaf := range task.Next.Dests() {
		dests = append(dests, leaf.Device.ID)
	}
	return &CycleError{VlinkID: task.VL.ID, DestIDs: dests}
}
