package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garnetlab/delaytool/cioq"
	"github.com/garnetlab/delaytool/engine"
	"github.com/garnetlab/delaytool/qrta"
	"github.com/garnetlab/delaytool/topology"
)

// lineParams: A -> S -> B with a single virtual link.
func lineParams() topology.Params {
	return topology.Params{
		Rate:          1,
		Scheme:        topology.OQ,
		BpMaxIter:     100000,
		CyclicMaxIter: 100,
		Links: []topology.Link{
			{From: 1, To: 2, Capacity: 1},
			{From: 3, To: 4, Capacity: 1},
		},
		Devices: []topology.DeviceDecl{
			{ID: 1, Type: topology.End, Ports: []int{1}},
			{ID: 2, Type: topology.Switch, Ports: []int{2, 3}},
			{ID: 3, Type: topology.End, Ports: []int{4}},
		},
		Vlinks: []topology.VlinkDecl{
			{ID: 1, SrcID: 1, Paths: [][]int{{2, 4}}, Bag: 8, Smax: 4, Smin: 4},
		},
	}
}

func run(t *testing.T, p topology.Params, opts ...engine.Option) (*topology.Config, []engine.Result) {
	t.Helper()
	cfg, err := topology.Build(p)
	require.NoError(t, err)
	results, err := engine.Run(cfg, opts...)
	require.NoError(t, err)
	return cfg, results
}

// TestRun_Line: one flow, two links. The source stage contributes
// smin/smax+jit0b exactly; the switch port adds one transmission.
func TestRun_Line(t *testing.T) {
	cfg, results := run(t, lineParams())

	require.Len(t, results, 1)
	r := results[0]
	require.Equal(t, 1, r.VlinkID)
	require.Equal(t, 3, r.DestDeviceID)
	require.Equal(t, int64(8), r.Dmin)
	require.Equal(t, int64(8), r.Dmax)
	require.Equal(t, int64(0), r.Jit)

	leaf := cfg.Vlink(1).Dst(3)
	require.True(t, leaf.E2E.Ready())
	require.Equal(t, r.Dmax, leaf.E2E.Dmax())
}

// TestRun_SourceJitter: the source stage seeds dmax = smax + jit0b
// exactly, and the jitter survives to the destination.
func TestRun_SourceJitter(t *testing.T) {
	p := lineParams()
	p.Vlinks[0].Jit0 = 2 // ms; at rate 1 this is 2 link-bytes
	_, results := run(t, p)

	r := results[0]
	require.Equal(t, int64(8), r.Dmin)
	require.Equal(t, int64(10), r.Dmax)
	require.Equal(t, int64(2), r.Jit)
}

// TestRun_TwoContenders: two identical flows share the switch port
// toward B at half the link rate; each one's worst case includes the
// other's frame.
func TestRun_TwoContenders(t *testing.T) {
	p := lineParams()
	p.Vlinks[0].Bag = 16
	p.Links = append(p.Links, topology.Link{From: 5, To: 6, Capacity: 1})
	p.Devices[1].Ports = []int{2, 3, 6}
	p.Devices = append(p.Devices, topology.DeviceDecl{ID: 4, Type: topology.End, Ports: []int{5}})
	p.Vlinks = append(p.Vlinks, topology.VlinkDecl{
		ID: 2, SrcID: 4, Paths: [][]int{{6, 4}}, Bag: 16, Smax: 4, Smin: 4,
	})
	_, results := run(t, p)

	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, 3, r.DestDeviceID)
		require.Equal(t, int64(8), r.Dmin)
		require.Equal(t, int64(12), r.Dmax)
		require.Equal(t, int64(4), r.Jit)
	}
}

// TestRun_Overload: three flows over-subscribe the port toward B;
// the run fails with ErrBpEndless and writes no result.
func TestRun_Overload(t *testing.T) {
	p := lineParams()
	p.Links = append(p.Links,
		topology.Link{From: 5, To: 6, Capacity: 1},
		topology.Link{From: 7, To: 8, Capacity: 1},
	)
	p.Devices[1].Ports = []int{2, 3, 6, 8}
	p.Devices = append(p.Devices,
		topology.DeviceDecl{ID: 4, Type: topology.End, Ports: []int{5}},
		topology.DeviceDecl{ID: 5, Type: topology.End, Ports: []int{7}},
	)
	p.Vlinks = append(p.Vlinks,
		topology.VlinkDecl{ID: 2, SrcID: 4, Paths: [][]int{{6, 4}}, Bag: 8, Smax: 4, Smin: 4},
		topology.VlinkDecl{ID: 3, SrcID: 5, Paths: [][]int{{8, 4}}, Bag: 8, Smax: 4, Smin: 4},
	)
	cfg, err := topology.Build(p)
	require.NoError(t, err)

	results, err := engine.Run(cfg)
	require.ErrorIs(t, err, qrta.ErrBpEndless)
	require.Nil(t, results)
	require.False(t, cfg.Vlink(1).Dst(3).E2E.Ready(), "no partial result on error")
}

// ringParams: three switches in a ring, three flows riding two ring
// segments each; the contended ports depend on one another in a
// cycle.
func ringParams() topology.Params {
	return topology.Params{
		Rate:          1,
		Scheme:        topology.OQ,
		BpMaxIter:     100000,
		CyclicMaxIter: 100,
		Links: []topology.Link{
			{From: 1, To: 2, Capacity: 1},
			{From: 3, To: 4, Capacity: 1},
			{From: 5, To: 6, Capacity: 1},
			{From: 61, To: 62, Capacity: 1},
			{From: 71, To: 72, Capacity: 1},
			{From: 81, To: 82, Capacity: 1},
			{From: 7, To: 8, Capacity: 1},
			{From: 9, To: 10, Capacity: 1},
			{From: 14, To: 13, Capacity: 1},
		},
		Devices: []topology.DeviceDecl{
			{ID: 1, Type: topology.End, Ports: []int{1}},
			{ID: 2, Type: topology.End, Ports: []int{3}},
			{ID: 3, Type: topology.End, Ports: []int{5}},
			{ID: 4, Type: topology.Switch, Ports: []int{2, 62, 82, 9}},
			{ID: 5, Type: topology.Switch, Ports: []int{4, 61, 72, 14}},
			{ID: 6, Type: topology.Switch, Ports: []int{6, 71, 81, 7}},
			{ID: 7, Type: topology.End, Ports: []int{8}},
			{ID: 8, Type: topology.End, Ports: []int{10}},
			{ID: 9, Type: topology.End, Ports: []int{13}},
		},
		Vlinks: []topology.VlinkDecl{
			{ID: 1, SrcID: 1, Paths: [][]int{{2, 61, 71, 8}}, Bag: 1000, Smax: 100, Smin: 64},
			{ID: 2, SrcID: 2, Paths: [][]int{{4, 71, 82, 10}}, Bag: 1000, Smax: 100, Smin: 64},
			{ID: 3, SrcID: 3, Paths: [][]int{{6, 82, 61, 13}}, Bag: 1000, Smax: 100, Smin: 64},
		},
	}
}

// TestRun_CyclicRing: the cyclic remainder converges in a few
// iterations and every pair gets a sound triple.
func TestRun_CyclicRing(t *testing.T) {
	cfg, results := run(t, ringParams())

	require.Len(t, results, 3)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Jit, int64(0))
		require.GreaterOrEqual(t, r.Dmax, r.Dmin)
		require.Greater(t, r.Dmin, int64(0))
		// Four links of smin each is the physical floor.
		require.GreaterOrEqual(t, r.Dmin, 4*int64(64))
	}
	for _, vl := range cfg.Vlinks() {
		for _, destID := range vl.DstIDs() {
			require.True(t, vl.Dst(destID).E2E.Ready())
		}
	}
}

// TestRun_CyclicCapDisabled: CyclicMaxIter = 0 disables the cap, the
// fixed point is still reached.
func TestRun_CyclicCapDisabled(t *testing.T) {
	p := ringParams()
	p.CyclicMaxIter = 0
	_, results := run(t, p)
	require.Len(t, results, 3)
}

// cyclicCIOQParams: two switches, two multicast flows crossing them
// in opposite directions with a shared destination port each, so the
// fabric components couple the flows into a dependency cycle.
func cyclicCIOQParams() topology.Params {
	return topology.Params{
		Rate:          1,
		Scheme:        topology.CIOQ,
		Fabrics:       2,
		BpMaxIter:     100000,
		CyclicMaxIter: 100,
		Links: []topology.Link{
			{From: 1, To: 2, Capacity: 1},   // A - S1
			{From: 21, To: 22, Capacity: 1}, // C - S2
			{From: 11, To: 12, Capacity: 1}, // S1 - S2
			{From: 5, To: 6, Capacity: 1},   // S1 - D
			{From: 35, To: 36, Capacity: 1}, // S2 - B
		},
		Devices: []topology.DeviceDecl{
			{ID: 1, Type: topology.End, Ports: []int{1}},
			{ID: 2, Type: topology.End, Ports: []int{21}},
			{ID: 3, Type: topology.Switch, Ports: []int{2, 11, 5}},
			{ID: 4, Type: topology.Switch, Ports: []int{22, 12, 35}},
			{ID: 5, Type: topology.End, Ports: []int{6}},
			{ID: 6, Type: topology.End, Ports: []int{36}},
		},
		Vlinks: []topology.VlinkDecl{
			// A -> S1 -> {S2 -> B, D}
			{ID: 1, SrcID: 1, Paths: [][]int{{2, 12, 36}, {2, 6}}, Bag: 1000, Smax: 100, Smin: 64},
			// C -> S2 -> {S1 -> D is taken: go to B locally, and S1 -> D}
			{ID: 2, SrcID: 2, Paths: [][]int{{22, 11, 6}, {22, 36}}, Bag: 1000, Smax: 100, Smin: 64},
		},
	}
}

// TestRun_CyclicCIOQ: with all edges on one fabric the two multicast
// flows couple through the fabric components of both switches;
// the engine iterates to a fixed point.
func TestRun_CyclicCIOQ(t *testing.T) {
	cfg, err := topology.Build(cyclicCIOQParams())
	require.NoError(t, err)

	maps := make(map[int]*cioq.Map)
	for _, dev := range cfg.Switches() {
		queueTable := make(map[int]map[int]int)
		fabricTable := make(map[cioq.QueueKey]int)
		for _, in := range dev.PortIDs() {
			perOut := make(map[int]int)
			for _, out := range dev.OutPortPseudoIDs() {
				perOut[out] = 0
			}
			queueTable[in] = perOut
			for q := 0; q < topology.NumQueues; q++ {
				fabricTable[cioq.QueueKey{In: in, Queue: q}] = 0
			}
		}
		m := cioq.New(dev, topology.NumQueues, cfg.Fabrics)
		m.SetTables(queueTable, fabricTable)
		maps[dev.ID] = m
	}

	results, err := engine.Run(cfg, engine.WithCioqMaps(maps))
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Jit, int64(0))
		require.GreaterOrEqual(t, r.Dmax, r.Dmin)
	}

	t.Run("duplicate destinations resolved per leaf", func(t *testing.T) {
		// Both flows reach D (device 5) and B (device 6); the leaves
		// are distinct vnodes with their own triples.
		require.True(t, cfg.Vlink(1).Dst(5).E2E.Ready())
		require.True(t, cfg.Vlink(2).Dst(5).E2E.Ready())
		require.NotSame(t, cfg.Vlink(1).Dst(5), cfg.Vlink(2).Dst(5))
	})
}

// TestRun_DmaxDominatesHops: a longer path accumulates at least the
// per-hop floor.
func TestRun_DmaxDominatesHops(t *testing.T) {
	_, results := run(t, ringParams())
	for _, r := range results {
		// Source + three switch hops, one smax each at minimum.
		require.GreaterOrEqual(t, r.Dmax, 4*int64(100))
	}
}
