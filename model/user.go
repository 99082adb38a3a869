// api/model/user.go
package model

import "time"

type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	CurrentTier       Tier       `json:"current_tier"`
	MaxTier           Tier       `json:"max_tier"`
	Roles             []string   `json:"roles"`
	FailedAttempts    int        `json:"failed_attempts"`
	Locked            bool       `json:"locked"`
	Active            bool       `json:"active"`
	IdentityVerified  bool       `json:"identity_verified"`
	TrustLevel        int        `json:"trust_level"`
	ExternalClearance bool       `json:"external_clearance"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// StatusSnapshot is the read-only operational view returned by GetStatus.
type StatusSnapshot struct {
	TotalUsers       int             `json:"total_users"`
	ActiveSessions   int             `json:"active_sessions"`
	TierDistribution map[string]int  `json:"tier_distribution"`
	Metrics          RequestCounters `json:"metrics"`
}

// RequestCounters are the engine's cumulative access-check counters.
type RequestCounters struct {
	Total      uint64 `json:"total"`
	Allowed    uint64 `json:"allowed"`
	Denied     uint64 `json:"denied"`
	Challenged uint64 `json:"challenged"`
	Escalated  uint64 `json:"escalated"`
	Monitored  uint64 `json:"monitored"`
}
