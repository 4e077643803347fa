package topology

import (
	"fmt"
	"math"
	"sort"
)

// NumQueues is the number of virtual queues per input port in the
// CIOQ model.
const NumQueues = 2

// Link declares one full-duplex link between two input ports.
type Link struct {
	From     int
	To       int
	Capacity float64 // bytes per ms; must equal the global rate
}

// DeviceDecl declares one device and the input ports it owns.
type DeviceDecl struct {
	ID    int
	Type  DeviceType
	Ports []int
}

// VlinkDecl declares one virtual link. Each path is the sequence of
// ingress-port ids from the source, ending at the destination device.
type VlinkDecl struct {
	ID    int
	SrcID int
	Paths [][]int
	Bag   int64   // ms
	Smax  int64   // bytes
	Smin  int64   // bytes
	Jit0  float64 // ms
}

// Params is the full input of the topology builder.
type Params struct {
	Rate          float64 // bytes per ms, network wide
	Scheme        Scheme
	Fabrics       int    // CIOQ fabrics per switch; multiple of NumQueues
	BpMaxIter     uint64 // busy-period iteration cap, 0 disables
	CyclicMaxIter uint64 // cyclic-pass iteration cap, 0 disables

	Links   []Link
	Devices []DeviceDecl
	Vlinks  []VlinkDecl
}

// Config owns every entity of a built topology. All cross-references
// between devices, ports, virtual links and routing-tree nodes point
// back into the maps held here and never outlive the Config.
type Config struct {
	Rate          float64
	Scheme        Scheme
	Fabrics       int
	BpMaxIter     uint64
	CyclicMaxIter uint64

	links      map[int]int // symmetric: port id <-> peer port id
	portDevice map[int]int // port id -> owning device id
	devices    map[int]*Device
	vlinks     map[int]*Vlink
}

// ConnectedPort returns the peer input-port id of the given port,
// which doubles as the pseudo-id of the corresponding output port.
func (c *Config) ConnectedPort(portID int) int { return c.links[portID] }

// PortDevice returns the id of the device owning the given port.
func (c *Config) PortDevice(portID int) int { return c.portDevice[portID] }

// Device returns the device with the given id; nil if absent.
func (c *Config) Device(id int) *Device { return c.devices[id] }

// Vlink returns the virtual link with the given id; nil if absent.
func (c *Config) Vlink(id int) *Vlink { return c.vlinks[id] }

// Devices returns all devices sorted by id.
func (c *Config) Devices() []*Device {
	ids := make([]int, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	res := make([]*Device, len(ids))
	for i, id := range ids {
		res[i] = c.devices[id]
	}
	return res
}

// Switches returns the switch devices sorted by id.
func (c *Config) Switches() []*Device {
	var res []*Device
	for _, d := range c.Devices() {
		if d.Type == Switch {
			res = append(res, d)
		}
	}
	return res
}

// Vlinks returns all virtual links sorted by id.
func (c *Config) Vlinks() []*Vlink {
	ids := make([]int, 0, len(c.vlinks))
	for id := range c.vlinks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	res := make([]*Vlink, len(ids))
	for i, id := range ids {
		res[i] = c.vlinks[id]
	}
	return res
}

// LinkByteToUs converts a link-byte quantity to microseconds at the
// configured rate.
func (c *Config) LinkByteToUs(v int64) int64 {
	return int64(math.Round(float64(v) / c.Rate * 1000))
}

// Build validates the declarations and assembles an immutable Config:
// devices first, then ports (deriving each port's peer through the
// link map), then the virtual links with their paths merged into
// routing trees.
func Build(p Params) (*Config, error) {
	if p.Rate <= 0 {
		return nil, fmt.Errorf("%w: link rate must be positive, got %g", ErrHeterogeneousRate, p.Rate)
	}
	if p.Scheme == CIOQ && (p.Fabrics <= 0 || p.Fabrics%NumQueues != 0) {
		return nil, fmt.Errorf("topology: fabrics per switch must be a positive multiple of %d, got %d", NumQueues, p.Fabrics)
	}

	cfg := &Config{
		Rate:          p.Rate,
		Scheme:        p.Scheme,
		Fabrics:       p.Fabrics,
		BpMaxIter:     p.BpMaxIter,
		CyclicMaxIter: p.CyclicMaxIter,
		links:         make(map[int]int, 2*len(p.Links)),
		portDevice:    make(map[int]int),
		devices:       make(map[int]*Device, len(p.Devices)),
		vlinks:        make(map[int]*Vlink, len(p.Vlinks)),
	}

	// 1) Link table: symmetric, homogeneous capacity.
	for _, l := range p.Links {
		if l.Capacity != p.Rate {
			return nil, fmt.Errorf("%w: link %d<->%d has capacity %g, network rate is %g",
				ErrHeterogeneousRate, l.From, l.To, l.Capacity, p.Rate)
		}
		cfg.links[l.From] = l.To
		cfg.links[l.To] = l.From
	}

	// 2) Devices and port ownership.
	for _, d := range p.Devices {
		if d.Type == End && len(d.Ports) > 1 {
			return nil, fmt.Errorf("%w: end system %d declares %d ports", ErrUnknownPort, d.ID, len(d.Ports))
		}
		dev := &Device{ID: d.ID, Type: d.Type, config: cfg, ports: make(map[int]*Port, len(d.Ports))}
		cfg.devices[d.ID] = dev
		for _, portID := range d.Ports {
			cfg.portDevice[portID] = d.ID
		}
	}

	// 3) Ports: each derives its peer pseudo-id and peer device.
	for _, d := range p.Devices {
		dev := cfg.devices[d.ID]
		for _, portID := range d.Ports {
			peer, ok := cfg.links[portID]
			if !ok {
				return nil, fmt.Errorf("%w: port %d of device %d has no link", ErrUnknownPort, portID, d.ID)
			}
			peerDev, ok := cfg.portDevice[peer]
			if !ok {
				return nil, fmt.Errorf("%w: port %d (peer of %d) has no owning device", ErrUnknownPort, peer, portID)
			}
			dev.ports[portID] = &Port{
				ID:         portID,
				OutPrev:    peer,
				Device:     dev,
				PrevDevice: cfg.devices[peerDev],
				vnodes:     make(map[int]*Vnode),
			}
		}
	}

	// 4) Virtual links: parameter invariants, then path merge.
	for _, v := range p.Vlinks {
		vl, err := cfg.buildVlink(v)
		if err != nil {
			return nil, err
		}
		cfg.vlinks[vl.ID] = vl
	}
	return cfg, nil
}

// buildVlink merges the declared paths into a routing tree: a path is
// walked from the source, following the existing child whose ingress
// port matches and creating new nodes past the divergence point.
func (c *Config) buildVlink(decl VlinkDecl) (*Vlink, error) {
	if decl.Smin > decl.Smax {
		return nil, fmt.Errorf("%w: vl %d has smin %d > smax %d", ErrBadVlink, decl.ID, decl.Smin, decl.Smax)
	}
	bagB := int64(float64(decl.Bag) * c.Rate)
	if bagB < decl.Smax {
		return nil, fmt.Errorf("%w: vl %d has bag %d link-bytes < smax %d", ErrBadVlink, decl.ID, bagB, decl.Smax)
	}
	if decl.Jit0 < 0 {
		return nil, fmt.Errorf("%w: vl %d has negative source jitter %g", ErrBadVlink, decl.ID, decl.Jit0)
	}
	if len(decl.Paths) == 0 {
		return nil, fmt.Errorf("%w: vl %d has no paths", ErrBadVlink, decl.ID)
	}
	srcDev := c.Device(decl.SrcID)
	if srcDev == nil {
		return nil, fmt.Errorf("%w: vl %d source device %d not declared", ErrBadVlink, decl.ID, decl.SrcID)
	}

	vl := &Vlink{
		ID:    decl.ID,
		SrcID: decl.SrcID,
		Bag:   decl.Bag,
		BagB:  bagB,
		Smax:  decl.Smax,
		Smin:  decl.Smin,
		Jit0:  decl.Jit0,
		Jit0b: int64(math.Ceil(decl.Jit0 * c.Rate)),
		dst:   make(map[int]*Vnode),
	}
	vl.Src = &Vnode{VL: vl, Device: srcDev}
	visited := map[int]bool{decl.SrcID: true} // devices the tree already covers

	for _, path := range decl.Paths {
		node := vl.Src
		i := 0
		// Follow the shared prefix.
		for i < len(path) {
			next := node.SelectNext(path[i])
			if next == nil {
				break
			}
			node = next
			i++
		}
		// Extend with new nodes past the divergence point.
		for ; i < len(path); i++ {
			portID := path[i]
			devID, ok := c.portDevice[portID]
			if !ok {
				return nil, fmt.Errorf("%w: vl %d path references port %d", ErrUnknownPort, vl.ID, portID)
			}
			dev := c.devices[devID]
			in := dev.Port(portID)
			if in == nil {
				return nil, fmt.Errorf("%w: vl %d path references port %d", ErrUnknownPort, vl.ID, portID)
			}
			if in.PrevDevice != node.Device {
				return nil, fmt.Errorf("%w: vl %d path jumps from device %d to port %d of device %d",
					ErrBadVlink, vl.ID, node.Device.ID, portID, devID)
			}
			if visited[devID] {
				return nil, fmt.Errorf("%w: vl %d paths diverge and reconverge on device %d", ErrBadVlink, vl.ID, devID)
			}
			visited[devID] = true
			child := &Vnode{VL: vl, Device: dev, In: in, Prev: node}
			node.Next = append(node.Next, child)
			in.vnodes[vl.ID] = child
			node = child
		}
		// node is the leaf for this path.
		if _, dup := vl.dst[node.Device.ID]; dup {
			return nil, fmt.Errorf("%w: vl %d lists device %d twice", ErrDuplicateDestination, vl.ID, node.Device.ID)
		}
		if node.Device.Type != End {
			return nil, fmt.Errorf("%w: vl %d path ends at switch %d", ErrBadVlink, vl.ID, node.Device.ID)
		}
		vl.dst[node.Device.ID] = node
	}
	return vl, nil
}
