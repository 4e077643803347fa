package qrta

import (
	"errors"
	"fmt"

	"github.com/garnetlab/delaytool/numeric"
	"github.com/garnetlab/delaytool/topology"
)

// Sentinel errors for the busy-period fixed point.
var (
	// ErrBpEndless is returned when the contending virtual links
	// over-subscribe the element: total rate >= 1 means the backlog
	// never drains and the fixed point does not exist.
	ErrBpEndless = errors.New("qrta: busy period endless, element over-subscribed")

	// ErrBpTooLong is returned when the busy-period iteration cap is
	// hit before convergence.
	ErrBpTooLong = errors.New("qrta: busy period convergence too long")
)

// FlowKey identifies one contending virtual-link branch: a virtual
// link may split inside a switch and then contributes one entry per
// branch, keyed by the pseudo-id of the egress it takes.
type FlowKey struct {
	VlinkID  int
	BranchID int
}

// Analysis is the reusable per-element state: the bound contributor
// delays and the cached busy period. ClearBP invalidates the busy
// period between iterations of the cyclic pass.
type Analysis struct {
	bpMaxIter uint64
	bp        int64 // -1 = unknown
	in        map[FlowKey]topology.DelayData

	// Result holds the delay triple computed by the last Calc call.
	Result topology.DelayData
}

// New creates an Analysis with the given busy-period iteration cap
// (0 disables the cap).
func New(bpMaxIter uint64) *Analysis {
	return &Analysis{bpMaxIter: bpMaxIter, bp: -1}
}

// SetInDelays binds the contributor delay triples for the next Calc.
func (a *Analysis) SetInDelays(in map[FlowKey]topology.DelayData) {
	a.in = in
}

// ClearBP invalidates the cached busy period.
func (a *Analysis) ClearBP() {
	a.bp = -1
}

// BP returns the cached busy period, or -1 when not computed.
func (a *Analysis) BP() int64 { return a.bp }

// totalRate is the bandwidth of the contending virtual links relative
// to the link rate.
func (a *Analysis) totalRate() float64 {
	s := 0.0
	for _, d := range a.in {
		vl := d.Vlink()
		s += float64(vl.Smax) / float64(vl.BagB)
	}
	return s
}

// busyPeriod iterates bp <- sum_c numPackets(bp, bag_c, jit_c)*smax_c
// from bp=1 until it stops changing; returns -1 when the iteration
// cap is hit first.
func (a *Analysis) busyPeriod() int64 {
	it := uint64(1)
	bp, bpPrev := int64(1), int64(0)
	for ; bp != bpPrev; it++ {
		bpPrev = bp
		bp = 0
		for _, d := range a.in {
			vl := d.Vlink()
			bp += numeric.NumPackets(bpPrev, vl.BagB, d.Jit()) * vl.Smax
		}
		if a.bpMaxIter != 0 && it >= a.bpMaxIter {
			return -1
		}
	}
	return bp
}

// calcBP computes and caches the busy period, checking the
// over-subscription precondition first.
func (a *Analysis) calcBP() error {
	if a.bp >= 0 {
		return nil
	}
	if ratio := a.totalRate(); ratio >= 1 {
		return fmt.Errorf("%w: total rate is %.3f of the link rate", ErrBpEndless, ratio)
	}
	bp := a.busyPeriod()
	if bp < 0 {
		return fmt.Errorf("%w: over %d iterations", ErrBpTooLong, a.bpMaxIter)
	}
	a.bp = bp
	return nil
}

// delayFunc is the response-time function of the branch under
// analysis at backlog-start offset t: every other contributor arrives
// with its full jitter, the branch itself is taken jitter-free.
func (a *Analysis) delayFunc(t int64, cur *topology.Vlink, curBranch int) int64 {
	res := -t
	for k, d := range a.in {
		vl := d.Vlink()
		jit := d.Jit()
		if k.VlinkID == cur.ID && k.BranchID == curBranch {
			jit = 0
		}
		res += numeric.NumPacketsUp(t, vl.BagB, jit) * vl.Smax
	}
	return res
}

// delayFuncRem is the remainder term for the q-th packet of the
// branch under analysis, clamped to the busy period.
func (a *Analysis) delayFuncRem(q int64, cur *topology.Vlink, curBranch int) int64 {
	bags := (q - 1) * cur.BagB
	value := int64(0)
	for k, d := range a.in {
		vl := d.Vlink()
		if k.VlinkID == cur.ID && k.BranchID == curBranch {
			value += vl.Smax * q
			continue
		}
		horizon := a.bp - cur.Smax
		if bags < horizon {
			horizon = bags
		}
		value += vl.Smax * numeric.NumPacketsUp(horizon, vl.BagB, d.Jit())
	}
	if value > a.bp {
		value = a.bp
	}
	return value - bags
}

// Calc bounds the local worst-case delay of (cur, curBranch) given
// the bound contributors: dmax is the accumulated dmax plus the
// maximum of the delay function over its candidate points and of the
// remainder term over its packet range; dmin adds smin once.
//
// Complexity: O(C * bp/minBag) evaluations of the delay function,
// where C is the number of contributors.
func (a *Analysis) Calc(cur *topology.Vlink, curBranch int) error {
	if err := a.calcBP(); err != nil {
		return err
	}

	curKey := FlowKey{VlinkID: cur.ID, BranchID: curBranch}
	curDelay, ok := a.in[curKey]
	if !ok || !curDelay.Ready() {
		panic(fmt.Sprintf("qrta: branch (vl %d, out %d) missing from its own contributor set", cur.ID, curBranch))
	}

	max := int64(-1)

	// 1) Candidate points at multiples of the branch's own gap.
	for t := int64(0); t <= a.bp-cur.Smax; t += cur.BagB {
		if v := a.delayFunc(t, cur, curBranch); v > max {
			max = v
		}
	}

	// 2) Candidate points induced by every other contributor: its
	// arrival instants shifted left by its jitter.
	for k, d := range a.in {
		if k == curKey {
			continue
		}
		vl := d.Vlink()
		for t := numeric.RoundToMultiple(d.Jit(), vl.BagB) - d.Jit(); t <= a.bp-cur.Smax; t += vl.BagB {
			if v := a.delayFunc(t, cur, curBranch); v > max {
				max = v
			}
		}
	}

	// 3) Remainder term over the packet-index range.
	qMin := numeric.NumPacketsUp(a.bp-cur.Smin, cur.BagB, 0)
	qMax := numeric.NumPackets(a.bp, cur.BagB, curDelay.Jit())
	for q := qMin; q <= qMax; q++ {
		if v := a.delayFuncRem(q, cur, curBranch); v > max {
			max = v
		}
	}

	if max < 0 {
		panic(fmt.Sprintf("qrta: no candidate point evaluated for vl %d (bp=%d)", cur.ID, a.bp))
	}
	dmax := curDelay.Dmax() + max
	dmin := curDelay.Dmin() + cur.Smin
	if dmax < dmin {
		panic(fmt.Sprintf("qrta: dmax %d < dmin %d for vl %d", dmax, dmin, cur.ID))
	}
	a.Result = topology.NewDelayData(cur, dmin, dmax-dmin)
	return nil
}
