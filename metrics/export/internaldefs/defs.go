package internaldefs

import (
	authcore "github.com/playrivals/authcore"
)

// CounterDef binds a counter ID to its exposition name and help text.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram ID to its exposition name and help text.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLockoutTriggered, Name: "authcore_lockout_triggered_total", Help: "Accounts locked after repeated failures."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh token reuses that triggered a session wipe."},
	{ID: authcore.MetricMFAChallengeIssued, Name: "authcore_mfa_challenge_issued_total", Help: "Login flows that required MFA step-up."},
	{ID: authcore.MetricMFAChallengeSuccess, Name: "authcore_mfa_challenge_success_total", Help: "Completed MFA login challenges."},
	{ID: authcore.MetricMFAChallengeFailure, Name: "authcore_mfa_challenge_failure_total", Help: "Failed MFA login confirmations."},
	{ID: authcore.MetricMFAAttemptsExceeded, Name: "authcore_mfa_attempts_exceeded_total", Help: "MFA challenges invalidated by the attempt cap."},
	{ID: authcore.MetricMFAEnabled, Name: "authcore_mfa_enabled_total", Help: "MFA enrollments."},
	{ID: authcore.MetricMFADisabled, Name: "authcore_mfa_disabled_total", Help: "MFA disables."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: authcore.MetricBackupCodeRegenerated, Name: "authcore_backup_code_regenerated_total", Help: "Backup code set regenerations."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Rejected password changes."},
	{ID: authcore.MetricAccountDeactivated, Name: "authcore_account_deactivated_total", Help: "Account deactivations."},
	{ID: authcore.MetricOAuthLogin, Name: "authcore_oauth_login_total", Help: "Logins through a linked provider."},
	{ID: authcore.MetricOAuthAccountCreated, Name: "authcore_oauth_account_created_total", Help: "Accounts created from provider profiles."},
	{ID: authcore.MetricOAuthLinked, Name: "authcore_oauth_linked_total", Help: "Provider identities linked."},
	{ID: authcore.MetricOAuthUnlinked, Name: "authcore_oauth_unlinked_total", Help: "Provider identities unlinked."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Sessions created."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Single sessions revoked."},
	{ID: authcore.MetricSessionsWiped, Name: "authcore_sessions_wiped_total", Help: "Full session wipes."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logouts."},
	{ID: authcore.MetricAuditWriteFailed, Name: "authcore_audit_write_failed_total", Help: "Audit events that fell back to the log."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Access-token verification latency."},
}

// HistogramBounds are the upper bounds of the fixed buckets, as
// Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal
// in OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
