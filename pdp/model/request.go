package model

import (
	"time"

	"github.com/dev-mohitbeniwal/warden/api/model"
)

// AccessRequest is one access check against the decision engine.
type AccessRequest struct {
	SessionID  string           `json:"session_id"`
	Resource   string           `json:"resource"`
	AccessType model.AccessType `json:"access_type"`
	Context    map[string]any   `json:"context,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}
