package authcore

import "time"

// EventType names a domain event. Values are stable wire identifiers.
type EventType string

const (
	EventAccountRegistered  EventType = "account.registered"
	EventAccountLoggedIn    EventType = "account.loggedIn"
	EventAccountLoggedOut   EventType = "account.loggedOut"
	EventTokensRefreshed    EventType = "account.tokensRefreshed"
	EventPasswordChanged    EventType = "account.passwordChanged"
	EventAccountDeactivated EventType = "account.deactivated"
	EventAccountLocked      EventType = "account.locked"
	EventMFAEnabled         EventType = "account.mfaEnabled"
	EventMFADisabled        EventType = "account.mfaDisabled"
	EventSessionsRevoked    EventType = "account.sessionsRevoked"
	EventSocialLinked       EventType = "account.socialLinked"
	EventSocialUnlinked     EventType = "account.socialUnlinked"
)

// Event is a domain event handed back to the caller for publication.
// The engine never publishes directly; results carry the events of the
// state transitions they performed, in order.
type Event struct {
	Type      EventType
	AccountID string
	Payload   map[string]string
	Timestamp time.Time
}

func newEvent(eventType EventType, accountID string, payload map[string]string) Event {
	return Event{
		Type:      eventType,
		AccountID: accountID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
