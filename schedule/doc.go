// Package schedule builds the data-dependency graph of delay tasks
// and orders it for the two-phase computation.
//
// A task stands for "packets of virtual link v leaving element e of a
// device toward branch b", where e is either the switching fabric (F)
// or the output port (P) and b is named by the ingress-port pseudo-id
// of the next hop. At a source end system only an inputless P task
// exists; at a switch an F and a P task exist per traversed branch.
//
// Dependencies follow the contention structure: a P task depends on
// the F tasks of every virtual link sharing its output port, and an F
// task depends on the upstream P tasks of every branch in its
// independent component (under OQ there are no F tasks and P tasks
// depend on upstream P tasks directly).
//
// Order splits the graph into an acyclic prefix, discovered by
// frontier scanning from the inputless tasks, and a cyclic remainder
// layered by hop distance from the acyclic subgraph and sorted by the
// maximum input layer. The delay engine computes the prefix once and
// iterates the remainder to a fixed point.
package schedule
