// Package cioq assigns a switch's (input port, output port) pairs to
// input queues and switching fabrics, and partitions the switch's
// traffic graph into independent components.
//
// The traffic graph is bipartite: input ports on one side, output
// ports (named by pseudo-id) on the other, with an edge for every
// pair carrying at least one virtual link. Two edges contend only if
// they share a fabric and are connected in that graph; a Component is
// a maximal such set. Analysis of one component is independent of all
// others, which is what keeps the per-fabric response-time analysis
// tractable.
//
// Generate installs the default queue/fabric tables; SetTables accepts
// custom ones. Any generator is acceptable as long as it yields every
// fabric id in range and produces non-empty components.
package cioq
