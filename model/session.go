// api/model/session.go
package model

import "time"

type AccessSession struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Tier         Tier          `json:"tier"`
	Status       SessionStatus `json:"status"`
	AuthMethod   string        `json:"auth_method"`
	SourceIP     string        `json:"source_ip"`
	UserAgent    string        `json:"user_agent,omitempty"`
	MFAVerified  bool          `json:"mfa_verified"`
	RiskScore    float64       `json:"risk_score"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	LastActivity time.Time     `json:"last_activity"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s AccessSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
