// Package topology models the statically-routed switched network the
// latency analysis runs over: devices (switches and end systems)
// connected by identical full-duplex links, and virtual links routed
// as trees over the devices.
//
// A Config owns every entity. Ports are materialised for the input
// side only; an output port is referenced by its pseudo-id, the id of
// the input port at the other end of the link. This keeps the mapping
// between "outgoing edge of a device" and "input port of its
// neighbour" bijective by construction.
//
// Build is the single constructor: it consumes the link map, the
// per-device port lists, and the per-virtual-link path lists, merges
// each virtual link's paths into a routing tree, and validates the
// result. After Build succeeds the topology is immutable except for
// the end-to-end results the delay engine writes onto destination
// leaves.
//
// Errors:
//
//	ErrUnknownPort          - a port id has no owning device or no link.
//	ErrDuplicateDestination - two paths of one VL end at the same device.
//	ErrHeterogeneousRate    - a link capacity differs from the global rate.
//	ErrBadVlink             - virtual-link parameters or paths are invalid.
package topology
