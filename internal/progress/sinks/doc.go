// Package sinks implements concrete progress consumers: Prometheus
// collectors, structured logging, and the append-only pass journal. Each
// sink satisfies the progress.Sink interface and is safe for repeated
// Consume/Close cycles.
package sinks
