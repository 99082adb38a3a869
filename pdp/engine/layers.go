// api/pdp/engine/layers.go
package engine

import (
	"fmt"
	"strings"

	"github.com/dev-mohitbeniwal/warden/api/model"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
)

// resolveLayer is Layer 1: resolve the user's transitive permission set,
// filter to permissions matching the resource, and scan every match. One
// satisfied match yields ALLOW even if earlier matches escalated on tier;
// otherwise the least permissive candidate wins (ESCALATE beats nothing,
// DENY is the fallback).
func (e *Engine) resolveLayer(user model.User, request pdp_model.AccessRequest) (model.Decision, string) {
	permissionIDs := e.roles.ResolvePermissionSet(user.Roles)
	matches := e.catalog.Matching(permissionIDs, request.Resource)
	if len(matches) == 0 {
		return model.DecisionDeny, "no permission for resource"
	}

	sawEscalate := false
	sawConditionFailure := false
	for _, permission := range matches {
		if !permission.Grants(request.AccessType) {
			continue
		}
		if user.CurrentTier < permission.RequiredTier {
			sawEscalate = true
			continue
		}
		if !permission.ConditionsMet(request.Context) {
			sawConditionFailure = true
			continue
		}
		return model.DecisionAllow, "access granted"
	}

	if sawEscalate {
		return model.DecisionEscalate, "insufficient tier"
	}
	if sawConditionFailure {
		return model.DecisionDeny, "context conditions not met"
	}
	return model.DecisionDeny, "no permission for resource"
}

// policyLayer is Layer 2: security-policy checks that can upgrade an ALLOW to
// a CHALLENGE.
func (e *Engine) policyLayer(user model.User, sess model.AccessSession, request pdp_model.AccessRequest, verdict model.Decision, reason string) (model.Decision, string) {
	var challenges []string

	hour := e.now().Hour()
	outsideHours := hour < e.cfg.BusinessHoursStart || hour >= e.cfg.BusinessHoursEnd
	if outsideHours && user.CurrentTier < model.TierPrivileged {
		challenges = append(challenges, "outside business hours")
	}

	if request.AccessType.Sensitive() && !sess.MFAVerified {
		challenges = append(challenges, "MFA required for sensitive operation")
	}

	if len(challenges) == 0 {
		return verdict, reason
	}
	return model.MostRestrictive(verdict, model.DecisionChallenge), strings.Join(challenges, "; ")
}

// attestationLayer is Layer 3: external trust signals. Any violation upgrades
// the verdict to ESCALATE with every violation listed in the reason.
func (e *Engine) attestationLayer(user model.User, request pdp_model.AccessRequest, verdict model.Decision, reason string) (model.Decision, string) {
	var violations []string

	if strings.Contains(request.Resource, "identity") && !user.IdentityVerified {
		violations = append(violations, "identity verification required")
	}

	requiredLevel := contextInt(request.Context, "required_level", 1)
	if user.TrustLevel < requiredLevel {
		violations = append(violations, fmt.Sprintf("competency level %d required", requiredLevel))
	}

	if !user.ExternalClearance {
		violations = append(violations, "external clearance missing")
	}

	if drift, ok := contextFloat(request.Context, "drift_score"); ok && drift > e.cfg.DriftThreshold {
		violations = append(violations, "high drift score detected")
	}

	if len(violations) == 0 {
		return verdict, reason
	}

	joined := strings.Join(violations, "; ")
	if verdict != model.DecisionAllow {
		joined = reason + " | " + joined
	}
	return model.MostRestrictive(verdict, model.DecisionEscalate), joined
}

func contextInt(contextMap map[string]any, key string, fallback int) int {
	value, ok := contextMap[key]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func contextFloat(contextMap map[string]any, key string) (float64, bool) {
	value, ok := contextMap[key]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
