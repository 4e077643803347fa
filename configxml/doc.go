// Package configxml reads and writes the afdxxml configuration
// format: network resources (links, end systems, switches) and
// virtual links with their routed paths.
//
// Decode parses a document; Params turns it into the topology
// builder's input, applying the defaults for absent attributes
// (lmin 64 bytes, jit0 500 microseconds). After the engine has run,
// Apply writes the per-path maxDelay/maxJit attributes (converted to
// microseconds at the link rate) and the per-switch scheme attributes
// back into the document, and Encode serialises it. Re-decoding an
// encoded document yields the same integers.
package configxml
