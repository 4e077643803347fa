// Package stats computes descriptive bandwidth-usage figures over a
// topology: the fraction of the link rate each input port carries and
// a summary the CLI prints before the analysis runs. A port with
// usage above 1 is over-subscribed and will make the busy-period
// fixed point diverge at the contended element.
package stats
