// api/catalog/permission_catalog.go
package catalog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	"github.com/dev-mohitbeniwal/warden/api/model"
)

// PermissionCatalog stores permission definitions. Permissions are registered
// at bootstrap and immutable afterwards; there is no update operation.
type PermissionCatalog struct {
	mu          sync.RWMutex
	permissions map[string]model.Permission
}

func NewPermissionCatalog() *PermissionCatalog {
	return &PermissionCatalog{
		permissions: make(map[string]model.Permission),
	}
}

// Register adds a permission definition. Fails on duplicate id or invalid data.
func (c *PermissionCatalog) Register(permission model.Permission) error {
	if err := validatePermission(permission); err != nil {
		return fmt.Errorf("%w: %v", warden_errors.ErrInvalidPermissionData, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.permissions[permission.ID]; exists {
		return warden_errors.ErrPermissionConflict
	}
	if permission.CreatedAt.IsZero() {
		permission.CreatedAt = time.Now().UTC()
	}
	c.permissions[permission.ID] = permission
	return nil
}

// Get returns the permission with the given id.
func (c *PermissionCatalog) Get(id string) (model.Permission, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	permission, exists := c.permissions[id]
	if !exists {
		return model.Permission{}, warden_errors.ErrPermissionNotFound
	}
	return permission, nil
}

// Has reports whether a permission id is registered.
func (c *PermissionCatalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.permissions[id]
	return exists
}

// List returns all registered permissions ordered by id.
func (c *PermissionCatalog) List() []model.Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Permission, 0, len(c.permissions))
	for _, p := range c.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Matching filters the given permission ids down to those whose resource
// pattern matches the resource path. Unknown ids are skipped.
func (c *PermissionCatalog) Matching(ids map[string]struct{}, resourcePath string) []model.Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []model.Permission
	for id := range ids {
		permission, exists := c.permissions[id]
		if !exists {
			continue
		}
		if permission.Resource.Matches(resourcePath) {
			matched = append(matched, permission)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

func validatePermission(permission model.Permission) error {
	if permission.ID == "" {
		return fmt.Errorf("permission ID cannot be empty")
	}
	if permission.Resource == "" {
		return fmt.Errorf("permission resource pattern cannot be empty")
	}
	if len(permission.AccessTypes) == 0 {
		return fmt.Errorf("permission must have at least one access type")
	}
	if !permission.RequiredTier.Valid() {
		return fmt.Errorf("required tier must be between %d and %d", model.TierPublic, model.TierSystem)
	}
	return nil
}
