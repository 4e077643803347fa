// Package engine runs the end-to-end latency computation: it builds
// the task graph over a topology, orders it, seeds every task with
// its minimum delay and a transparent upper bound, computes the
// acyclic prefix once, iterates the cyclic remainder to a monotone
// fixed point, and writes the resulting (dmin, dmax, jit) triple onto
// every destination leaf.
//
// The engine is a pure function of its configuration: it is
// single-threaded, never retries, and on any error returns without
// having produced a partial result set.
package engine
