// api/audit/model.go
package audit

import "time"

// Event types recorded in the audit trail.
const (
	EventAuthSuccess       = "auth.success"
	EventAuthFailure       = "auth.failure"
	EventUserLocked        = "user.locked"
	EventUserUnlocked      = "user.unlocked"
	EventTierChanged       = "user.tier_changed"
	EventAccessCheck       = "access.check"
	EventSessionCreated    = "session.created"
	EventSessionExpired    = "session.expired"
	EventSessionTerminated = "session.terminated"
)

// Entry is a single append-only audit record. Entries are never mutated after
// being recorded.
type Entry struct {
	ID         string    `json:"id"`
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Resource   string    `json:"resource,omitempty"`
	AccessType string    `json:"access_type,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Reason     string    `json:"reason"`
	SourceIP   string    `json:"source_ip,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
