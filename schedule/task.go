package schedule

import (
	"fmt"
	"sort"

	"github.com/garnetlab/delaytool/qrta"
	"github.com/garnetlab/delaytool/topology"
)

// Elem distinguishes the two scheduling elements of a switch.
type Elem int

const (
	// ElemF is the switching fabric stage (CIOQ only).
	ElemF Elem = iota

	// ElemP is the output-port stage.
	ElemP
)

// String returns "F" or "P".
func (e Elem) String() string {
	if e == ElemF {
		return "F"
	}
	return "P"
}

// TaskID identifies a delay task: virtual link, branch (the ingress
// pseudo-id of the next hop), and element. Port ids are network-wide
// unique, so the triple is unique across the whole graph.
type TaskID struct {
	VlinkID     int
	OutPseudoID int
	Elem        Elem
}

func (id TaskID) String() string {
	return fmt.Sprintf("vl %d to port %d (%s)", id.VlinkID, id.OutPseudoID, id.Elem)
}

// less orders TaskIDs for deterministic traversal.
func (id TaskID) less(other TaskID) bool {
	if id.VlinkID != other.VlinkID {
		return id.VlinkID < other.VlinkID
	}
	if id.OutPseudoID != other.OutPseudoID {
		return id.OutPseudoID < other.OutPseudoID
	}
	return id.Elem < other.Elem
}

// DelayTask is one node of the computation graph: the delay accrued
// by packets of VL from the source up to the exit of Elem toward
// Next. The task is owned by the graph; Inputs and OutputFor hold
// non-owning references.
type DelayTask struct {
	VL   *topology.Vlink
	Next *topology.Vnode // vnode at the next hop; Next.In.ID is the branch
	Elem Elem

	// Analysis is the element's shared QRTA state; nil for inputless
	// source tasks.
	Analysis *qrta.Analysis

	// Inputs maps (vlink, branch) to the upstream task whose output
	// distorts arrivals at this element. A virtual link splitting
	// inside a switch contributes one entry per branch.
	Inputs map[qrta.FlowKey]*DelayTask

	// OutputFor is the reverse edge set, keyed by downstream task id.
	OutputFor map[TaskID]*DelayTask

	// Delay is the task's current (dmin, jit, dmax) estimate.
	Delay topology.DelayData

	// Ordering state, filled by Graph.Order.
	InCycle       bool
	CyclicLayer   int
	MaxInputLayer int

	// Iter counts how many times the delay was recomputed.
	Iter int
}

// ID returns the task's identifier.
func (t *DelayTask) ID() TaskID {
	return TaskID{VlinkID: t.VL.ID, OutPseudoID: t.Next.In.ID, Elem: t.Elem}
}

// BranchID is the pseudo-id of the branch this task feeds.
func (t *DelayTask) BranchID() int { return t.Next.In.ID }

// successors returns the downstream tasks in deterministic id order.
func (t *DelayTask) successors() []*DelayTask {
	ids := make([]TaskID, 0, len(t.OutputFor))
	for id := range t.OutputFor {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].less(ids[j]) })
	res := make([]*DelayTask, len(ids))
	for i, id := range ids {
		res[i] = t.OutputFor[id]
	}
	return res
}

// ClearBP invalidates the busy period of the task's element.
func (t *DelayTask) ClearBP() {
	if t.Analysis != nil {
		t.Analysis.ClearBP()
	}
}

// BindInputs pushes the current delays of all input tasks into the
// element's analysis state.
func (t *DelayTask) BindInputs() {
	if len(t.Inputs) == 0 {
		return
	}
	in := make(map[qrta.FlowKey]topology.DelayData, len(t.Inputs))
	for key, dep := range t.Inputs {
		in[key] = dep.Delay
	}
	t.Analysis.SetInDelays(in)
}
