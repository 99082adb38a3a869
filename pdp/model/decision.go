package model

import (
	"time"

	"github.com/dev-mohitbeniwal/warden/api/model"
)

// AccessDecision is the final verdict for an access request. Callers always
// receive a decision and a human-readable reason; internal failures surface
// as conservative ESCALATE decisions, never as errors or panics.
type AccessDecision struct {
	Decision    model.Decision `json:"decision"`
	Reason      string         `json:"reason"`
	RiskScore   float64        `json:"risk_score,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// DecisionCacheEntry is a cached decision with its expiry.
type DecisionCacheEntry struct {
	Decision  AccessDecision
	ExpiresAt time.Time
}
