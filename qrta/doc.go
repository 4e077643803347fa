// Package qrta implements the per-element worst-case queueing
// response-time analysis.
//
// An Analysis instance is attached to one scheduling element of a
// switch (a fabric component or an output port) and is fed the delay
// triples of every virtual-link branch contending there. Calc then
// bounds the local worst-case delay of one branch in three steps:
// the busy period is obtained as the least fixed point of the
// aggregate arrival curve, the delay function is maximised over a
// finite set of candidate points, and the remainder term is evaluated
// over its packet-index range. The larger of the two maxima, added to
// the branch's accumulated delay, is tight under the arrival-curve
// model.
//
// The busy-period fixed point requires the element not to be
// over-subscribed; see ErrBpEndless and ErrBpTooLong.
package qrta
