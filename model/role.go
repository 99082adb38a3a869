// api/model/role.go
package model

import "time"

type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Tier         Tier      `json:"tier"`
	Permissions  []string  `json:"permissions"`
	InheritsFrom []string  `json:"inherits_from,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
