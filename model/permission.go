// api/model/permission.go
package model

import (
	"strings"
	"time"
)

// ResourcePattern matches resource paths by prefix. The special pattern
// "public" matches every resource.
type ResourcePattern string

const PatternPublic ResourcePattern = "public"

func (p ResourcePattern) Matches(resourcePath string) bool {
	if p == PatternPublic {
		return true
	}
	return strings.HasPrefix(resourcePath, string(p))
}

type Permission struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Resource          ResourcePattern   `json:"resource"`
	AccessTypes       []AccessType      `json:"access_types"`
	RequiredTier      Tier              `json:"required_tier"`
	ContextConditions map[string]string `json:"context_conditions,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Grants reports whether the permission covers the given access type.
func (p Permission) Grants(accessType AccessType) bool {
	for _, at := range p.AccessTypes {
		if at == accessType {
			return true
		}
	}
	return false
}

// ConditionsMet checks every context condition against the supplied request
// context. All conditions must match; a missing key is a mismatch.
func (p Permission) ConditionsMet(requestContext map[string]any) bool {
	for key, want := range p.ContextConditions {
		got, ok := requestContext[key]
		if !ok {
			return false
		}
		if s, ok := got.(string); !ok || s != want {
			return false
		}
	}
	return true
}
