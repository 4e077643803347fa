// Package deletepaths detects cyclic data dependencies in the delay
// task graph and names the virtual-link paths whose removal breaks
// them.
//
// The delay engine handles cycles by fixed-point iteration, but a
// configuration can also be made acyclic offline: Detect builds the
// task graph, and when a cyclic remainder exists returns a CycleError
// carrying one virtual-link id and the destination device ids whose
// paths should be deleted. The companion CLI prunes those paths from
// the document and repeats until Detect succeeds.
package deletepaths
