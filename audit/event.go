package audit

import (
	"time"
)

// Action is the closed set of security-relevant operations that produce
// audit records.
type Action string

const (
	ActionRegister        Action = "account.registered"
	ActionLogin           Action = "account.login"
	ActionLogout          Action = "account.logout"
	ActionRefresh         Action = "account.token_refresh"
	ActionPasswordChange  Action = "account.password_changed"
	ActionDeactivate      Action = "account.deactivated"
	ActionLockout         Action = "account.lockout"
	ActionMFASetup        Action = "mfa.setup"
	ActionMFAEnable       Action = "mfa.enabled"
	ActionMFAVerify       Action = "mfa.verify"
	ActionMFADisable      Action = "mfa.disabled"
	ActionMFARegenerate   Action = "mfa.backup_codes_regenerated"
	ActionOAuthLogin      Action = "oauth.login"
	ActionOAuthLink       Action = "oauth.linked"
	ActionOAuthUnlink     Action = "oauth.unlinked"
	ActionSessionRevoke   Action = "session.revoked"
	ActionSessionsCleared Action = "session.revoked_all"
	ActionAcknowledge     Action = "audit.acknowledged"
)

// Outcome records how the audited operation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeWarning Outcome = "warning"
)

// Severity ranks an event for alerting. High and Critical events surface
// through Alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alertable reports whether the severity belongs on the alert feed.
func (s Severity) Alertable() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Event is one immutable audit record. ID and Timestamp are assigned by the
// Pipeline on write; the acknowledged fields are the only ones that may
// change afterward.
type Event struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	ActorID       string            `json:"actor_id,omitempty"`
	Action        Action            `json:"action"`
	Resource      string            `json:"resource"`
	Outcome       Outcome           `json:"outcome"`
	Severity      Severity          `json:"severity"`
	IP            string            `json:"ip,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Detail        map[string]string `json:"detail,omitempty"`

	Acknowledged   bool      `json:"acknowledged,omitempty"`
	AcknowledgedBy string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledged_at,omitzero"`
}
