// api/model/enums.go
package model

import "fmt"

// AccessType is the kind of operation requested against a resource.
type AccessType string

const (
	AccessRead    AccessType = "read"
	AccessWrite   AccessType = "write"
	AccessExecute AccessType = "execute"
	AccessDelete  AccessType = "delete"
	AccessAdmin   AccessType = "admin"
	AccessSystem  AccessType = "system"
)

// ParseAccessType converts a wire string into an AccessType.
func ParseAccessType(s string) (AccessType, error) {
	switch AccessType(s) {
	case AccessRead, AccessWrite, AccessExecute, AccessDelete, AccessAdmin, AccessSystem:
		return AccessType(s), nil
	}
	return "", fmt.Errorf("unknown access type %q", s)
}

// Sensitive reports whether the access type always requires MFA.
func (a AccessType) Sensitive() bool {
	switch a {
	case AccessDelete, AccessAdmin, AccessSystem:
		return true
	}
	return false
}

// Decision is the outcome of an access check.
type Decision string

const (
	DecisionAllow     Decision = "allow"
	DecisionMonitor   Decision = "monitor"
	DecisionChallenge Decision = "challenge"
	DecisionEscalate  Decision = "escalate"
	DecisionDeny      Decision = "deny"
)

// restrictiveness ranks decisions from least (allow) to most (deny) restrictive.
var restrictiveness = map[Decision]int{
	DecisionAllow:     0,
	DecisionMonitor:   1,
	DecisionChallenge: 2,
	DecisionEscalate:  3,
	DecisionDeny:      4,
}

// Restrictiveness returns the rank of the decision; higher is more restrictive.
func (d Decision) Restrictiveness() int {
	return restrictiveness[d]
}

// MoreRestrictiveThan reports whether d ranks strictly above other.
func (d Decision) MoreRestrictiveThan(other Decision) bool {
	return d.Restrictiveness() > other.Restrictiveness()
}

// MostRestrictive picks the stricter of two decisions. Evaluation layers use it
// so that no layer can weaken a verdict produced by an earlier layer.
func MostRestrictive(a, b Decision) Decision {
	if b.MoreRestrictiveThan(a) {
		return b
	}
	return a
}

// Tier is an ordinal access level, T1 (least privileged) through T5 (full
// system control).
type Tier int

const (
	TierPublic     Tier = 1
	TierStandard   Tier = 2
	TierElevated   Tier = 3
	TierPrivileged Tier = 4
	TierSystem     Tier = 5
)

func (t Tier) Valid() bool {
	return t >= TierPublic && t <= TierSystem
}

func (t Tier) String() string {
	return fmt.Sprintf("T%d", int(t))
}

// SessionStatus tracks the lifecycle of an AccessSession.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionExpired    SessionStatus = "expired"
	SessionTerminated SessionStatus = "terminated"
	SessionLocked     SessionStatus = "locked"
)

// Terminal reports whether the status is absorbing. No transition ever leaves
// a terminal status.
func (s SessionStatus) Terminal() bool {
	return s != SessionActive
}
