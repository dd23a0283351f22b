// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces the archiver uses to report pass progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks such
// as Prometheus metrics, structured logs, or the on-disk pass journal.
package progress
