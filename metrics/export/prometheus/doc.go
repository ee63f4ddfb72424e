// Package prometheus renders the engine's counters and latency histogram in
// Prometheus text exposition format. Counters are named gastronomy_*_total;
// the histogram is gastronomy_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount Handler.
//   - Mutate engine state.
package prometheus
