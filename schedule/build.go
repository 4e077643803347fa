package schedule

import (
	"fmt"

	"github.com/garnetlab/delaytool/cioq"
	"github.com/garnetlab/delaytool/qrta"
	"github.com/garnetlab/delaytool/topology"
)

// compKey addresses the shared analysis state of one fabric component.
type compKey struct {
	DeviceID int
	CompID   int
}

// Graph is the full task graph plus its computed orders. Tasks are
// owned here and looked up by id.
type Graph struct {
	cfg   *topology.Config
	maps  map[int]*cioq.Map
	tasks map[TaskID]*DelayTask
	ids   []TaskID // creation order

	// AcyclicOrder is a topological order over the acyclic subgraph.
	AcyclicOrder []*DelayTask

	// CyclicOrder holds the remaining tasks sorted by MaxInputLayer;
	// empty when the whole graph is acyclic.
	CyclicOrder []*DelayTask
}

// Task returns the task with the given id; nil if absent.
func (g *Graph) Task(id TaskID) *DelayTask { return g.tasks[id] }

// Tasks returns all tasks in creation order.
func (g *Graph) Tasks() []*DelayTask {
	res := make([]*DelayTask, len(g.ids))
	for i, id := range g.ids {
		res[i] = g.tasks[id]
	}
	return res
}

// CioqMap returns the CIOQ assignment of the given switch, or nil.
func (g *Graph) CioqMap(deviceID int) *cioq.Map { return g.maps[deviceID] }

// Build creates the delay tasks for every hop of every virtual link
// and wires their dependencies. For CIOQ, maps must hold the per-
// switch queue/fabric assignment (as built by cioq.GenerateAll); it
// is ignored under OQ.
func Build(cfg *topology.Config, maps map[int]*cioq.Map) *Graph {
	g := &Graph{
		cfg:   cfg,
		maps:  maps,
		tasks: make(map[TaskID]*DelayTask),
	}
	if cfg.Scheme == topology.CIOQ {
		g.buildCIOQ()
	} else {
		g.buildOQ()
	}
	g.wireReverse()
	return g
}

func (g *Graph) add(t *DelayTask) {
	id := t.ID()
	if _, dup := g.tasks[id]; dup {
		panic(fmt.Sprintf("schedule: duplicate task %s", id))
	}
	g.tasks[id] = t
	g.ids = append(g.ids, id)
}

// forEachHop visits every (vnode, vnodeNext) hop of the network in
// deterministic order: devices by id, ports by id, vnodes by VL id.
// vnode is at the emitting device (source end system or switch) and
// vnodeNext at the device the branch enters.
func (g *Graph) forEachHop(visit func(vnode, vnodeNext *topology.Vnode)) {
	for _, dev := range g.cfg.Devices() {
		for _, port := range dev.Ports() {
			for _, vnodeNext := range port.Vnodes() {
				visit(vnodeNext.Prev, vnodeNext)
			}
		}
	}
}

// buildCIOQ creates one shared analysis per fabric component and per
// output port, then an F and a P task per switch hop (P only at
// source end systems).
func (g *Graph) buildCIOQ() {
	fabricQRTA := make(map[compKey]*qrta.Analysis)
	portQRTA := make(map[int]*qrta.Analysis)
	for _, dev := range g.cfg.Switches() {
		for _, comp := range g.maps[dev.ID].Components() {
			fabricQRTA[compKey{dev.ID, comp.ID}] = qrta.New(g.cfg.BpMaxIter)
		}
		for _, outPseudo := range dev.OutPortPseudoIDs() {
			portQRTA[outPseudo] = qrta.New(g.cfg.BpMaxIter)
		}
	}

	// 1) Create tasks.
	g.forEachHop(func(vnode, vnodeNext *topology.Vnode) {
		outPseudo := vnodeNext.In.ID
		var portAnalysis *qrta.Analysis
		if vnode.Device.Type == topology.Switch {
			comp := g.maps[vnode.Device.ID].Component(cioq.Edge{In: vnode.In.ID, OutPseudo: outPseudo})
			g.add(&DelayTask{
				VL: vnode.VL, Next: vnodeNext, Elem: ElemF,
				Analysis:  fabricQRTA[compKey{vnode.Device.ID, comp.ID}],
				Inputs:    make(map[qrta.FlowKey]*DelayTask),
				OutputFor: make(map[TaskID]*DelayTask),
			})
			portAnalysis = portQRTA[outPseudo]
		}
		g.add(&DelayTask{
			VL: vnode.VL, Next: vnodeNext, Elem: ElemP,
			Analysis:  portAnalysis,
			Inputs:    make(map[qrta.FlowKey]*DelayTask),
			OutputFor: make(map[TaskID]*DelayTask),
		})
	})

	// 2) Wire inputs. Every hop out of a switch contributes:
	//    F task <- upstream P task of every branch in its component;
	//    P task <- F task of every VL sharing its output port.
	g.forEachHop(func(vnode, vnodeNext *topology.Vnode) {
		if vnode.Device.Type != topology.Switch {
			return
		}
		dev := vnode.Device
		outPseudo := vnodeNext.In.ID

		taskF := g.tasks[TaskID{vnode.VL.ID, outPseudo, ElemF}]
		comp := g.maps[dev.ID].Component(cioq.Edge{In: vnode.In.ID, OutPseudo: outPseudo})
		for _, edge := range comp.Edges {
			for _, curVnode := range dev.VlinksThrough(edge.In, edge.OutPseudo) {
				dep := g.tasks[TaskID{curVnode.VL.ID, edge.In, ElemP}]
				taskF.Inputs[qrta.FlowKey{VlinkID: curVnode.VL.ID, BranchID: edge.OutPseudo}] = dep
			}
		}

		taskP := g.tasks[TaskID{vnode.VL.ID, outPseudo, ElemP}]
		outPortIn := dev.PortByPseudoID(outPseudo)
		for _, curVnodeNext := range outPortIn.Vnodes() {
			dep := g.tasks[TaskID{curVnodeNext.VL.ID, outPseudo, ElemF}]
			taskP.Inputs[qrta.FlowKey{VlinkID: curVnodeNext.VL.ID, BranchID: outPseudo}] = dep
		}
	})
}

// buildOQ creates one shared analysis per output port and a single P
// task per hop; P tasks depend on the upstream P tasks of every VL
// sharing the output port.
func (g *Graph) buildOQ() {
	portQRTA := make(map[int]*qrta.Analysis)
	for _, dev := range g.cfg.Switches() {
		for _, outPseudo := range dev.OutPortPseudoIDs() {
			portQRTA[outPseudo] = qrta.New(g.cfg.BpMaxIter)
		}
	}

	g.forEachHop(func(vnode, vnodeNext *topology.Vnode) {
		var portAnalysis *qrta.Analysis
		if vnode.Device.Type == topology.Switch {
			portAnalysis = portQRTA[vnodeNext.In.ID]
		}
		g.add(&DelayTask{
			VL: vnode.VL, Next: vnodeNext, Elem: ElemP,
			Analysis:  portAnalysis,
			Inputs:    make(map[qrta.FlowKey]*DelayTask),
			OutputFor: make(map[TaskID]*DelayTask),
		})
	})

	g.forEachHop(func(vnode, vnodeNext *topology.Vnode) {
		if vnode.Device.Type != topology.Switch {
			return
		}
		dev := vnode.Device
		outPseudo := vnodeNext.In.ID
		taskP := g.tasks[TaskID{vnode.VL.ID, outPseudo, ElemP}]
		outPortIn := dev.PortByPseudoID(outPseudo)
		for _, curVnodeNext := range outPortIn.Vnodes() {
			curVnode := curVnodeNext.Prev
			dep := g.tasks[TaskID{curVnode.VL.ID, curVnode.In.ID, ElemP}]
			taskP.Inputs[qrta.FlowKey{VlinkID: curVnode.VL.ID, BranchID: outPseudo}] = dep
		}
	})
}

// wireReverse fills OutputFor from the Inputs edges.
func (g *Graph) wireReverse() {
	for _, id := range g.ids {
		t := g.tasks[id]
		for _, dep := range t.Inputs {
			dep.OutputFor[id] = t
		}
	}
}
