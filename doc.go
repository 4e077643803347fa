// Package delaytool computes worst-case and best-case end-to-end
// latencies, and the associated jitter, for every virtual link of a
// statically-routed AFDX-style switched network.
//
// Given a topology of end systems and switches connected by identical
// full-duplex links, and a set of virtual links each described by a
// source, a routing tree, a minimum inter-packet gap, bounded frame
// sizes and a source jitter bound, the analysis produces a tight
// upper bound on latency and jitter for every (virtual link,
// destination) pair. Time is measured in link-bytes, so the whole
// computation stays in integer arithmetic.
//
// The module is organised leaves-first:
//
//	numeric/     — integer arrival-curve arithmetic
//	topology/    — devices, ports, virtual links and routing trees
//	cioq/        — queue/fabric assignment and independent components
//	qrta/        — per-element queueing response-time analysis
//	schedule/    — delay-task graph construction and ordering
//	engine/      — two-phase delay computation and E2E extraction
//	configxml/   — afdxxml input/output
//	stats/       — bandwidth-usage figures
//	deletepaths/ — offline acyclicity helper
//	cmd/         — the delaytool and deletepaths binaries
package delaytool
