// Package jobs runs background work outside the request path. CleanupJob
// sweeps expired refresh-token records on a cron schedule, midnight by default.
package jobs
