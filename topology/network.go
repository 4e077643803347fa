package topology

import "sort"

// Device is a switch or an end system.
type Device struct {
	ID   int
	Type DeviceType

	config *Config
	ports  map[int]*Port // input ports by id; end systems hold at most one
}

// Port returns the input port with the given id; nil if absent.
func (d *Device) Port(id int) *Port { return d.ports[id] }

// Ports returns the device's input ports sorted by id.
func (d *Device) Ports() []*Port {
	ids := make([]int, 0, len(d.ports))
	for id := range d.ports {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	res := make([]*Port, len(ids))
	for i, id := range ids {
		res[i] = d.ports[id]
	}
	return res
}

// PortIDs returns the device's input-port ids sorted ascending.
func (d *Device) PortIDs() []int {
	ids := make([]int, 0, len(d.ports))
	for id := range d.ports {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OutPortPseudoIDs returns, sorted, the pseudo-ids of the device's
// output ports: for each input port, the id of the input port at the
// other end of its link.
func (d *Device) OutPortPseudoIDs() []int {
	ids := make([]int, 0, len(d.ports))
	for id := range d.ports {
		ids = append(ids, d.config.ConnectedPort(id))
	}
	sort.Ints(ids)
	return ids
}

// PortByPseudoID resolves an output-port pseudo-id to the input port
// it names: the port with that id at the neighbouring device.
func (d *Device) PortByPseudoID(outPseudoID int) *Port {
	peer := d.config.Device(d.config.PortDevice(outPseudoID))
	if peer == nil {
		return nil
	}
	return peer.Port(outPseudoID)
}

// HasVlinks reports whether at least one virtual link enters the
// device through inID and leaves through the output port named by
// outPseudoID.
func (d *Device) HasVlinks(inID, outPseudoID int) bool {
	in := d.Port(inID)
	if in == nil {
		return false
	}
	for _, vn := range in.vnodes {
		if vn.SelectNext(outPseudoID) != nil {
			return true
		}
	}
	return false
}

// VlinksThrough returns, sorted by virtual-link id, the vnodes that
// enter the device through inID and branch toward outPseudoID.
func (d *Device) VlinksThrough(inID, outPseudoID int) []*Vnode {
	in := d.Port(inID)
	if in == nil {
		return nil
	}
	var res []*Vnode
	for _, vn := range in.Vnodes() {
		if vn.SelectNext(outPseudoID) != nil {
			res = append(res, vn)
		}
	}
	return res
}

// Port is an input port. The output port at the same physical socket
// is never materialised; it is referenced by the id of the input port
// at the other end of the link (the pseudo-id).
type Port struct {
	ID int

	// OutPrev is the pseudo-id of the output port this input port is
	// wired to, i.e. the id of the peer input port across the link.
	OutPrev int

	Device     *Device
	PrevDevice *Device

	vnodes map[int]*Vnode // routing-tree nodes by virtual-link id
}

// Vnode returns the routing-tree node of the given virtual link on
// this port; nil if the link does not traverse it.
func (p *Port) Vnode(vlID int) *Vnode { return p.vnodes[vlID] }

// Vnodes returns the port's routing-tree nodes sorted by VL id.
func (p *Port) Vnodes() []*Vnode {
	ids := make([]int, 0, len(p.vnodes))
	for id := range p.vnodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	res := make([]*Vnode, len(ids))
	for i, id := range ids {
		res[i] = p.vnodes[id]
	}
	return res
}

// Vlink is a source-to-multi-destination flow with a guaranteed
// minimum inter-packet gap and bounded frame sizes. All *B fields are
// in link-bytes; Bag and Jit0 keep the configured milliseconds.
type Vlink struct {
	ID    int
	SrcID int

	Bag   int64   // minimum inter-packet gap, ms
	BagB  int64   // Bag in link-bytes
	Smax  int64   // maximum frame size, bytes
	Smin  int64   // minimum frame size, bytes
	Jit0  float64 // source jitter bound, ms
	Jit0b int64   // Jit0 in link-bytes, rounded up

	Src *Vnode
	dst map[int]*Vnode // destination leaf by device id
}

// Dst returns the destination leaf at the given device; nil if the
// link has no path there.
func (v *Vlink) Dst(deviceID int) *Vnode { return v.dst[deviceID] }

// DstIDs returns the destination device ids sorted ascending.
func (v *Vlink) DstIDs() []int {
	ids := make([]int, 0, len(v.dst))
	for id := range v.dst {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Vnode is one node of a virtual link's routing tree. The source node
// has In == nil; destination leaves have no children and carry the
// computed end-to-end result after the engine runs.
type Vnode struct {
	VL     *Vlink
	Device *Device
	In     *Port // ingress port at Device, nil at the source
	Prev   *Vnode
	Next   []*Vnode

	// E2E is the end-to-end delay triple, set on destination leaves
	// only, as the engine's sole externally observable mutation.
	E2E DelayData
}

// SelectNext returns the child entered through the given ingress-port
// id, or nil.
func (n *Vnode) SelectNext(portID int) *Vnode {
	for _, c := range n.Next {
		if c.In != nil && c.In.ID == portID {
			return c
		}
	}
	return nil
}

// Dests collects the destination leaves of the subtree rooted at n,
// in routing-tree order.
func (n *Vnode) Dests() []*Vnode {
	if len(n.Next) == 0 {
		return []*Vnode{n}
	}
	var res []*Vnode
	for _, c := range n.Next {
		res = append(res, c.Dests()...)
	}
	return res
}
