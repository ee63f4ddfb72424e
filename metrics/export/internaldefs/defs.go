package internaldefs

import (
	"strconv"
	"strings"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
)

// BucketCount is the number of latency histogram buckets, +Inf included.
const BucketCount = 8

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   gastronomy.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   gastronomy.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events dropped under backpressure.
const AuditDroppedName = "gastronomy_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: gastronomy.MetricLoginSuccess, Name: "gastronomy_login_success_total", Help: "Successful user and member logins."},
	{ID: gastronomy.MetricLoginFailure, Name: "gastronomy_login_failure_total", Help: "Failed login attempts."},
	{ID: gastronomy.MetricRegister, Name: "gastronomy_register_total", Help: "User registrations."},
	{ID: gastronomy.MetricRefreshSuccess, Name: "gastronomy_refresh_success_total", Help: "Refresh token rotations."},
	{ID: gastronomy.MetricRefreshFailure, Name: "gastronomy_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: gastronomy.MetricSessionCreated, Name: "gastronomy_session_created_total", Help: "Stored refresh-token records."},
	{ID: gastronomy.MetricSessionEvicted, Name: "gastronomy_session_evicted_total", Help: "Refresh-token records evicted by the per-principal cap."},
	{ID: gastronomy.MetricLogout, Name: "gastronomy_logout_total", Help: "Logout operations."},
	{ID: gastronomy.MetricSessionsPurged, Name: "gastronomy_sessions_purged_total", Help: "Expired refresh-token records removed by cleanup."},
	{ID: gastronomy.MetricRateLimitHit, Name: "gastronomy_rate_limit_hit_total", Help: "Requests rejected by the rate limiter."},
	{ID: gastronomy.MetricAuthenticationDenied, Name: "gastronomy_authentication_denied_total", Help: "Requests without a valid access token."},
	{ID: gastronomy.MetricAuthorizationDenied, Name: "gastronomy_authorization_denied_total", Help: "Requests whose principal lacked the required role."},
	{ID: gastronomy.MetricPasswordRehash, Name: "gastronomy_password_rehash_total", Help: "Password hashes upgraded on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: gastronomy.MetricValidateLatency, Name: "gastronomy_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the bucket upper bounds in seconds as exposition labels.
var HistogramBounds = bounds(func(s string) string { return s }, "+Inf")

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = bounds(func(s string) string { return strings.ReplaceAll(s, ".", "_") }, "inf")

func bounds(format func(string) string, last string) []string {
	out := make([]string, 0, BucketCount)
	for _, d := range gastronomy.HistogramBounds {
		out = append(out, format(strconv.FormatFloat(d.Seconds(), 'f', -1, 64)))
	}
	return append(out, last)
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
