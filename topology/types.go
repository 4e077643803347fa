package topology

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for topology construction.
var (
	// ErrUnknownPort indicates a port id referenced by a path or link
	// that no device owns, or a device port with no link attached.
	ErrUnknownPort = errors.New("topology: unknown port")

	// ErrDuplicateDestination indicates two paths of the same virtual
	// link listing the same destination device.
	ErrDuplicateDestination = errors.New("topology: duplicate destination")

	// ErrHeterogeneousRate indicates a link whose capacity disagrees
	// with the network-wide link rate.
	ErrHeterogeneousRate = errors.New("topology: heterogeneous link rate")

	// ErrBadVlink indicates invalid virtual-link parameters or a path
	// that does not follow the links of the topology.
	ErrBadVlink = errors.New("topology: bad virtual link")
)

// Scheme selects the switch queueing model the analysis assumes.
type Scheme int

const (
	// OQ is the output-queued switch model: no input-side contention.
	OQ Scheme = iota

	// CIOQ is the combined input-and-output-queued model: per-input
	// virtual queues multiplexed over a set of switching fabrics.
	CIOQ
)

// String returns the canonical name of the scheme.
func (s Scheme) String() string {
	switch s {
	case OQ:
		return "OQ"
	case CIOQ:
		return "CIOQ"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ParseScheme maps a case-insensitive scheme name to its value.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "oq":
		return OQ, nil
	case "cioq":
		return CIOQ, nil
	default:
		return 0, fmt.Errorf("topology: unknown scheme %q", name)
	}
}

// DeviceType distinguishes switches from end systems.
type DeviceType int

const (
	// End is an end system: a traffic source or sink with one port.
	End DeviceType = iota

	// Switch is a store-and-forward switch.
	Switch
)

// DelayData is an immutable (dmin, jit, dmax) triple attached to a
// virtual link, in link-bytes. The zero value is not ready and reports
// -1 for every component.
type DelayData struct {
	vl    *Vlink
	dmin  int64
	jit   int64
	ready bool
}

// NewDelayData builds a ready triple; dmax is derived as dmin+jit.
func NewDelayData(vl *Vlink, dmin, jit int64) DelayData {
	return DelayData{vl: vl, dmin: dmin, jit: jit, ready: true}
}

// Ready reports whether the triple has been computed.
func (d DelayData) Ready() bool { return d.ready }

// Vlink returns the virtual link the triple belongs to, or nil.
func (d DelayData) Vlink() *Vlink { return d.vl }

// Dmin returns the minimum delay, or -1 when not ready.
func (d DelayData) Dmin() int64 {
	if !d.ready {
		return -1
	}
	return d.dmin
}

// Jit returns the jitter dmax-dmin, or -1 when not ready.
func (d DelayData) Jit() int64 {
	if !d.ready {
		return -1
	}
	return d.jit
}

// Dmax returns the maximum delay, or -1 when not ready.
func (d DelayData) Dmax() int64 {
	if !d.ready {
		return -1
	}
	return d.dmin + d.jit
}
