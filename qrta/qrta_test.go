package qrta_test

import (
	"errors"
	"testing"

	"github.com/garnetlab/delaytool/qrta"
	"github.com/garnetlab/delaytool/topology"
)

// flow builds a bare virtual link; BagB, Smax, Smin in link-bytes.
func flow(id int, bagB, smax, smin int64) *topology.Vlink {
	return &topology.Vlink{ID: id, BagB: bagB, Smax: smax, Smin: smin}
}

// TestCalc_SingleFlow is the one-switch line: a lone contributor with
// accumulated (dmin=4, jit=0). The local worst case is its own
// transmission, so dmax grows by smax and dmin by smin.
func TestCalc_SingleFlow(t *testing.T) {
	vl := flow(1, 8, 4, 4)
	a := qrta.New(0)
	a.SetInDelays(map[qrta.FlowKey]topology.DelayData{
		{VlinkID: 1, BranchID: 4}: topology.NewDelayData(vl, 4, 0),
	})
	if err := a.Calc(vl, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := a.BP(); got != 4 {
		t.Errorf("bp = %d; want 4", got)
	}
	if d := a.Result; d.Dmin() != 8 || d.Dmax() != 8 {
		t.Errorf("result = (%d,%d); want (8,8)", d.Dmin(), d.Dmax())
	}
}

// TestCalc_TwoFlows is the contention scenario: two identical flows
// on one output port, together at half the link rate. The busy period
// covers both frames and each flow's worst case includes the other's
// transmission.
func TestCalc_TwoFlows(t *testing.T) {
	vl1 := flow(1, 16, 4, 4)
	vl2 := flow(2, 16, 4, 4)
	a := qrta.New(0)
	a.SetInDelays(map[qrta.FlowKey]topology.DelayData{
		{VlinkID: 1, BranchID: 4}: topology.NewDelayData(vl1, 4, 0),
		{VlinkID: 2, BranchID: 4}: topology.NewDelayData(vl2, 4, 0),
	})
	if err := a.Calc(vl1, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := a.BP(); got != 8 {
		t.Errorf("bp = %d; want 8", got)
	}
	// bp never undercuts the largest frame.
	if a.BP() < vl1.Smax || a.BP() < vl2.Smax {
		t.Error("bp below max contributor frame")
	}
	if d := a.Result; d.Dmin() != 8 || d.Dmax() != 12 || d.Jit() != 4 {
		t.Errorf("result = (%d,%d,%d); want (8,12,4)", d.Dmin(), d.Dmax(), d.Jit())
	}

	// The analysis is symmetric for the second flow.
	if err := a.Calc(vl2, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := a.Result; d.Dmin() != 8 || d.Dmax() != 12 {
		t.Errorf("vl2 result = (%d,%d); want (8,12)", d.Dmin(), d.Dmax())
	}
}

// TestCalc_Overload: three flows of smax=4 every 8 link-bytes
// over-subscribe the element (12/8 > 1).
func TestCalc_Overload(t *testing.T) {
	a := qrta.New(0)
	in := make(map[qrta.FlowKey]topology.DelayData)
	vls := make([]*topology.Vlink, 3)
	for i := range vls {
		vls[i] = flow(i+1, 8, 4, 4)
		in[qrta.FlowKey{VlinkID: i + 1, BranchID: 9}] = topology.NewDelayData(vls[i], 4, 0)
	}
	a.SetInDelays(in)
	if err := a.Calc(vls[0], 9); !errors.Is(err, qrta.ErrBpEndless) {
		t.Errorf("want ErrBpEndless, got %v", err)
	}
}

// TestCalc_ExactCapacity: total rate exactly 1 must fail the
// precondition, never loop silently.
func TestCalc_ExactCapacity(t *testing.T) {
	vl1 := flow(1, 8, 4, 4)
	vl2 := flow(2, 8, 4, 4)
	vl3 := flow(3, 16, 8, 8)
	a := qrta.New(0)
	a.SetInDelays(map[qrta.FlowKey]topology.DelayData{
		{VlinkID: 1, BranchID: 9}: topology.NewDelayData(vl1, 4, 0),
		{VlinkID: 2, BranchID: 9}: topology.NewDelayData(vl2, 4, 0),
		{VlinkID: 3, BranchID: 9}: topology.NewDelayData(vl3, 8, 0),
	})
	if err := a.Calc(vl1, 9); !errors.Is(err, qrta.ErrBpEndless) {
		t.Errorf("want ErrBpEndless, got %v", err)
	}
}

// TestCalc_BpTooLong: a tiny iteration cap trips before convergence;
// cap 0 disables the limit entirely.
func TestCalc_BpTooLong(t *testing.T) {
	mk := func(cap uint64) *qrta.Analysis {
		vl1 := flow(1, 16, 4, 4)
		vl2 := flow(2, 16, 4, 4)
		a := qrta.New(cap)
		a.SetInDelays(map[qrta.FlowKey]topology.DelayData{
			{VlinkID: 1, BranchID: 9}: topology.NewDelayData(vl1, 4, 0),
			{VlinkID: 2, BranchID: 9}: topology.NewDelayData(vl2, 4, 0),
		})
		return a
	}

	if err := mk(1).Calc(flow(1, 16, 4, 4), 9); !errors.Is(err, qrta.ErrBpTooLong) {
		t.Errorf("want ErrBpTooLong with cap 1, got %v", err)
	}
	if err := mk(0).Calc(flow(1, 16, 4, 4), 9); err != nil {
		t.Errorf("cap 0 must disable the limit, got %v", err)
	}
}

// TestClearBP: the busy period is recomputed after a clear.
func TestClearBP(t *testing.T) {
	vl := flow(1, 8, 4, 4)
	a := qrta.New(0)
	a.SetInDelays(map[qrta.FlowKey]topology.DelayData{
		{VlinkID: 1, BranchID: 4}: topology.NewDelayData(vl, 4, 0),
	})
	if err := a.Calc(vl, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.ClearBP()
	if a.BP() != -1 {
		t.Errorf("bp after clear = %d; want -1", a.BP())
	}
	if err := a.Calc(vl, 4); err != nil {
		t.Fatalf("unexpected error after clear: %v", err)
	}
	if a.BP() != 4 {
		t.Errorf("bp recomputed = %d; want 4", a.BP())
	}
}

// TestCalc_JitteredContributor: a contributor with jitter shifts the
// candidate points and widens the busy period.
func TestCalc_JitteredContributor(t *testing.T) {
	vl1 := flow(1, 16, 4, 4)
	vl2 := flow(2, 16, 4, 4)
	a := qrta.New(0)
	a.SetInDelays(map[qrta.FlowKey]topology.DelayData{
		{VlinkID: 1, BranchID: 4}: topology.NewDelayData(vl1, 4, 0),
		{VlinkID: 2, BranchID: 4}: topology.NewDelayData(vl2, 4, 12),
	})
	if err := a.Calc(vl1, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := a.Result
	if d.Dmin() != 8 {
		t.Errorf("dmin = %d; want 8", d.Dmin())
	}
	if d.Dmax() < 12 {
		t.Errorf("dmax = %d; the other flow's frame must be countable", d.Dmax())
	}
	if d.Jit() < 0 || d.Dmax() < d.Dmin() {
		t.Error("delay invariant violated")
	}
}
