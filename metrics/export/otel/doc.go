// Package otel exposes the engine's counters as OpenTelemetry observable
// instruments. Histogram buckets become one cumulative gauge per bound.
package otel
