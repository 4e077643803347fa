package cioq

import (
	"sort"

	"github.com/garnetlab/delaytool/topology"
)

// Edge is one traffic-bearing pair of a switch's bipartite traffic
// graph: an input port and an output port named by pseudo-id.
type Edge struct {
	In        int
	OutPseudo int
}

// QueueKey addresses one virtual queue of one input port.
type QueueKey struct {
	In    int
	Queue int
}

// Component is a maximal connected set of traffic-bearing edges
// sharing one fabric. Edges is sorted for deterministic traversal.
type Component struct {
	ID    int
	Edges []Edge
}

// Contains reports whether the component holds the given edge.
func (c *Component) Contains(e Edge) bool {
	for _, have := range c.Edges {
		if have == e {
			return true
		}
	}
	return false
}

// Map is the per-switch CIOQ assignment: queue table, fabric table,
// and the derived partition of traffic-bearing edges into independent
// components.
type Map struct {
	device   *topology.Device
	nQueues  int
	nFabrics int

	queueTable  map[int]map[int]int // in -> outPseudo -> queue
	fabricTable map[QueueKey]int    // (in, queue) -> fabric

	comps     []*Component
	compIndex map[Edge]*Component
}

// New creates an empty Map for a switch; tables are installed with
// SetTables or Generate.
func New(dev *topology.Device, nQueues, nFabrics int) *Map {
	return &Map{
		device:   dev,
		nQueues:  nQueues,
		nFabrics: nFabrics,
	}
}

// QueueID returns the queue the (in, outPseudo) pair is assigned to.
func (m *Map) QueueID(in, outPseudo int) int { return m.queueTable[in][outPseudo] }

// FabricID returns the fabric serving queue q of input port in.
func (m *Map) FabricID(in, q int) int { return m.fabricTable[QueueKey{in, q}] }

// FabricIDByEdge returns the fabric serving the (in, outPseudo) pair.
func (m *Map) FabricIDByEdge(in, outPseudo int) int {
	return m.FabricID(in, m.QueueID(in, outPseudo))
}

// Components returns the independent components in build order.
func (m *Map) Components() []*Component { return m.comps }

// Component returns the component owning the given edge, or nil when
// the edge carries no traffic.
func (m *Map) Component(e Edge) *Component { return m.compIndex[e] }

// SetTables installs explicit queue and fabric tables and derives the
// component partition: for every (input, queue) with traffic, the
// component reachable from it is built once and indexed by each of
// its edges.
func (m *Map) SetTables(queueTable map[int]map[int]int, fabricTable map[QueueKey]int) {
	m.queueTable = queueTable
	m.fabricTable = fabricTable
	m.comps = nil
	m.compIndex = make(map[Edge]*Component)

	for _, in := range m.device.PortIDs() {
		for q := 0; q < m.nQueues; q++ {
			// Find any traffic-bearing output served by this queue.
			seed := -1
			for _, outPseudo := range m.device.OutPortPseudoIDs() {
				if m.QueueID(in, outPseudo) == q && m.device.HasVlinks(in, outPseudo) {
					seed = outPseudo
					break
				}
			}
			if seed == -1 {
				continue
			}
			if _, done := m.compIndex[Edge{in, seed}]; done {
				continue
			}
			edges := m.BuildComp(in, q)
			if len(edges) == 0 {
				continue
			}
			comp := &Component{ID: len(m.comps), Edges: edges}
			m.comps = append(m.comps, comp)
			for _, e := range edges {
				m.compIndex[e] = comp
			}
		}
	}
}

// BuildComp returns, sorted, the traffic-bearing edges reachable from
// (in, q) through the bipartite graph restricted to the fabric of
// (in, q). Frontier expansion alternates between the input and output
// sides until no side adds a new port.
func (m *Map) BuildComp(in, q int) []Edge {
	fabric := m.FabricID(in, q)
	inIDs := m.device.PortIDs()
	outIDs := m.device.OutPortPseudoIDs()

	inSeen := map[int]bool{in: false}
	outSeen := map[int]bool{}
	edgeSet := map[Edge]struct{}{}

	for hasUnseen := true; hasUnseen; {
		hasUnseen = false

		for _, inID := range sortedKeys(inSeen) {
			if inSeen[inID] {
				continue
			}
			for _, outID := range outIDs {
				if m.device.HasVlinks(inID, outID) && m.FabricIDByEdge(inID, outID) == fabric {
					edgeSet[Edge{inID, outID}] = struct{}{}
					if _, ok := outSeen[outID]; !ok {
						outSeen[outID] = false
						hasUnseen = true
					}
				}
			}
			inSeen[inID] = true
		}

		for _, outID := range sortedKeys(outSeen) {
			if outSeen[outID] {
				continue
			}
			for _, inID := range inIDs {
				if m.device.HasVlinks(inID, outID) && m.FabricIDByEdge(inID, outID) == fabric {
					edgeSet[Edge{inID, outID}] = struct{}{}
					if _, ok := inSeen[inID]; !ok {
						inSeen[inID] = false
						hasUnseen = true
					}
				}
			}
			outSeen[outID] = true
		}
	}

	edges := make([]Edge, 0, len(edgeSet))
	for e := range edgeSet {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].In != edges[j].In {
			return edges[i].In < edges[j].In
		}
		return edges[i].OutPseudo < edges[j].OutPseudo
	})
	return edges
}

// Generate installs the default tables on a switch: queue by output
// index modulo NumQueues, fabric by input index with the queue offset
// flipped on odd fabric rows so every fabric id in range is produced.
func Generate(dev *topology.Device, nQueues, nFabrics int) *Map {
	m := New(dev, nQueues, nFabrics)

	inIDs := dev.PortIDs()
	queueTable := make(map[int]map[int]int, len(inIDs))
	fabricTable := make(map[QueueKey]int)

	for i, inID := range inIDs {
		for q := 0; q < nQueues; q++ {
			fabric := i%nFabrics + q*(1-((i%nFabrics)%nQueues)*nQueues)
			fabricTable[QueueKey{inID, q}] = fabric
		}
		perOut := make(map[int]int, len(inIDs))
		for j, outID := range inIDs {
			perOut[dev.Port(outID).OutPrev] = j % nQueues
		}
		queueTable[inID] = perOut
	}

	m.SetTables(queueTable, fabricTable)
	return m
}

// GenerateAll builds the default Map for every switch of a CIOQ
// configuration, keyed by device id. Returns nil for OQ.
func GenerateAll(cfg *topology.Config) map[int]*Map {
	if cfg.Scheme != topology.CIOQ {
		return nil
	}
	maps := make(map[int]*Map)
	for _, dev := range cfg.Switches() {
		maps[dev.ID] = Generate(dev, topology.NumQueues, cfg.Fabrics)
	}
	return maps
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
