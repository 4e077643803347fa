// Package numeric provides the integer arithmetic kit behind the
// arrival-curve model: ceiling divisions, packet counting over an
// interval, and rounding to a multiple.
//
// All quantities are expressed in link-bytes (the time it takes to
// transmit one byte at the common link rate), so every operation stays
// in exact int64 arithmetic. Within any interval of duration dt, a
// flow with minimum gap bag and jitter bound jit can inject at most
// NumPackets(dt, bag, jit) packets; NumPacketsUp is the right-sided
// limit used where the curve is right-continuous at integer multiples.
package numeric
