package stats

import (
	"sort"

	"github.com/garnetlab/delaytool/topology"
)

// PortUsage returns, per input-port id, the total bandwidth of the
// virtual links traversing the port as a fraction of the link rate:
// the sum of smax/bagB over its flows.
func PortUsage(cfg *topology.Config) map[int]float64 {
	res := make(map[int]float64)
	for _, dev := range cfg.Devices() {
		for _, port := range dev.Ports() {
			sum := 0.0
			for _, vn := range port.Vnodes() {
				vl := vn.VL
				sum += float64(vl.Smax) / float64(vl.BagB)
			}
			res[port.ID] = sum
		}
	}
	return res
}

// Summary describes the distribution of per-port usage.
type Summary struct {
	Ports      int
	Min        float64
	Mean       float64
	Max        float64
	Overloaded []int // ids of ports with usage > 1, sorted
}

// Summarize condenses a PortUsage map.
func Summarize(usage map[int]float64) Summary {
	s := Summary{Ports: len(usage)}
	if len(usage) == 0 {
		return s
	}
	first := true
	sum := 0.0
	for id, u := range usage {
		if first || u < s.Min {
			s.Min = u
		}
		if first || u > s.Max {
			s.Max = u
		}
		first = false
		sum += u
		if u > 1 {
			s.Overloaded = append(s.Overloaded, id)
		}
	}
	s.Mean = sum / float64(len(usage))
	sort.Ints(s.Overloaded)
	return s
}
