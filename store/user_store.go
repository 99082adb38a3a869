// api/store/user_store.go
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	"github.com/dev-mohitbeniwal/warden/api/catalog"
	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/model"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

// UserStore owns all User records. Each user has its own mutex so that
// concurrent updates to unrelated users never serialize, while updates to the
// same user (notably failed-attempt counting) are atomic.
type UserStore struct {
	mu         sync.RWMutex
	users      map[string]*userEntry
	byUsername map[string]string

	roles            *catalog.RoleGraph
	auditSvc         audit.Service
	eventBus         *util.EventBus
	lockoutThreshold int
}

type userEntry struct {
	mu   sync.Mutex
	user model.User
}

type CreateUserRequest struct {
	Username          string     `json:"username"`
	Tier              model.Tier `json:"tier"`
	MaxTier           model.Tier `json:"max_tier"`
	Roles             []string   `json:"roles"`
	IdentityVerified  bool       `json:"identity_verified"`
	TrustLevel        int        `json:"trust_level"`
	ExternalClearance bool       `json:"external_clearance"`
}

func NewUserStore(roles *catalog.RoleGraph, auditSvc audit.Service, eventBus *util.EventBus, lockoutThreshold int) *UserStore {
	if lockoutThreshold <= 0 {
		lockoutThreshold = 5
	}
	return &UserStore{
		users:            make(map[string]*userEntry),
		byUsername:       make(map[string]string),
		roles:            roles,
		auditSvc:         auditSvc,
		eventBus:         eventBus,
		lockoutThreshold: lockoutThreshold,
	}
}

// Create registers a new user. Role ids must reference registered roles.
func (s *UserStore) Create(ctx context.Context, req CreateUserRequest) (model.User, error) {
	if req.Username == "" {
		return model.User{}, fmt.Errorf("%w: username cannot be empty", warden_errors.ErrInvalidUserData)
	}
	if !req.Tier.Valid() || !req.MaxTier.Valid() {
		return model.User{}, fmt.Errorf("%w: invalid tier", warden_errors.ErrInvalidUserData)
	}
	if req.Tier > req.MaxTier {
		return model.User{}, warden_errors.ErrTierExceedsMaximum
	}
	for _, roleID := range req.Roles {
		if !s.roles.Has(roleID) {
			return model.User{}, fmt.Errorf("%w: unknown role %q", warden_errors.ErrInvalidUserData, roleID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[req.Username]; exists {
		return model.User{}, warden_errors.ErrUserConflict
	}

	now := time.Now().UTC()
	user := model.User{
		ID:                uuid.NewString(),
		Username:          req.Username,
		CurrentTier:       req.Tier,
		MaxTier:           req.MaxTier,
		Roles:             append([]string(nil), req.Roles...),
		Active:            true,
		IdentityVerified:  req.IdentityVerified,
		TrustLevel:        req.TrustLevel,
		ExternalClearance: req.ExternalClearance,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.users[user.ID] = &userEntry{user: user}
	s.byUsername[user.Username] = user.ID

	logger.Info("User created",
		zap.String("userID", user.ID),
		zap.String("username", user.Username),
		zap.String("tier", user.CurrentTier.String()))
	return user, nil
}

// Get returns a copy of the user with the given id.
func (s *UserStore) Get(userID string) (model.User, error) {
	entry, err := s.entry(userID)
	if err != nil {
		return model.User{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneUser(entry.user), nil
}

// GetByUsername returns a copy of the user with the given username.
func (s *UserStore) GetByUsername(username string) (model.User, error) {
	s.mu.RLock()
	userID, exists := s.byUsername[username]
	s.mu.RUnlock()
	if !exists {
		return model.User{}, warden_errors.ErrUserNotFound
	}
	return s.Get(userID)
}

// RecordFailedAttempt atomically increments the failed-attempt counter. When
// the counter reaches the lockout threshold the user is locked exactly once
// and an audit event is emitted, all under the same per-user lock.
func (s *UserStore) RecordFailedAttempt(ctx context.Context, userID string) (attempts int, locked bool, err error) {
	entry, err := s.entry(userID)
	if err != nil {
		return 0, false, err
	}

	entry.mu.Lock()
	entry.user.FailedAttempts++
	entry.user.UpdatedAt = time.Now().UTC()
	attempts = entry.user.FailedAttempts

	justLocked := false
	if attempts >= s.lockoutThreshold && !entry.user.Locked {
		entry.user.Locked = true
		justLocked = true
	}
	locked = entry.user.Locked
	username := entry.user.Username
	entry.mu.Unlock()

	if justLocked {
		s.auditSvc.Record(ctx, audit.Entry{
			EventType: audit.EventUserLocked,
			UserID:    userID,
			Reason:    fmt.Sprintf("locked after %d failed attempts", attempts),
		})
		s.eventBus.Publish(ctx, util.EventUserLocked, userID)
		logger.Warn("User locked after repeated failures",
			zap.String("userID", userID),
			zap.String("username", username),
			zap.Int("attempts", attempts))
	}
	return attempts, locked, nil
}

// ResetFailures clears the failed-attempt counter and unlocks the user.
// Administrative operation.
func (s *UserStore) ResetFailures(ctx context.Context, userID string) error {
	entry, err := s.entry(userID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	wasLocked := entry.user.Locked
	entry.user.FailedAttempts = 0
	entry.user.Locked = false
	entry.user.UpdatedAt = time.Now().UTC()
	entry.mu.Unlock()

	if wasLocked {
		s.auditSvc.Record(ctx, audit.Entry{
			EventType: audit.EventUserUnlocked,
			UserID:    userID,
			Reason:    "failure counter reset by administrator",
		})
		s.eventBus.Publish(ctx, util.EventUserUnlocked, userID)
	}
	return nil
}

// UpdateTier changes the user's current tier, bounded by their maximum.
func (s *UserStore) UpdateTier(ctx context.Context, userID string, newTier model.Tier) error {
	if !newTier.Valid() {
		return fmt.Errorf("%w: invalid tier %d", warden_errors.ErrInvalidUserData, newTier)
	}

	entry, err := s.entry(userID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if newTier > entry.user.MaxTier {
		return warden_errors.ErrTierExceedsMaximum
	}
	previous := entry.user.CurrentTier
	entry.user.CurrentTier = newTier
	entry.user.UpdatedAt = time.Now().UTC()

	s.auditSvc.Record(ctx, audit.Entry{
		EventType: audit.EventTierChanged,
		UserID:    userID,
		Reason:    fmt.Sprintf("tier changed from %s to %s", previous, newTier),
	})
	return nil
}

// SetActive enables or disables the user account.
func (s *UserStore) SetActive(ctx context.Context, userID string, active bool) error {
	entry, err := s.entry(userID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	entry.user.Active = active
	entry.user.UpdatedAt = time.Now().UTC()
	entry.mu.Unlock()
	return nil
}

// RecordLogin stamps the last successful login time.
func (s *UserStore) RecordLogin(ctx context.Context, userID string) error {
	entry, err := s.entry(userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	entry.mu.Lock()
	entry.user.LastLoginAt = &now
	entry.user.UpdatedAt = now
	entry.mu.Unlock()
	return nil
}

// Count returns the number of registered users.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// TierDistribution returns the number of users at each current tier.
func (s *UserStore) TierDistribution() map[string]int {
	s.mu.RLock()
	entries := make([]*userEntry, 0, len(s.users))
	for _, entry := range s.users {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	dist := make(map[string]int)
	for _, entry := range entries {
		entry.mu.Lock()
		dist[entry.user.CurrentTier.String()]++
		entry.mu.Unlock()
	}
	return dist
}

func (s *UserStore) entry(userID string) (*userEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, exists := s.users[userID]
	if !exists {
		return nil, warden_errors.ErrUserNotFound
	}
	return entry, nil
}

func cloneUser(u model.User) model.User {
	out := u
	out.Roles = append([]string(nil), u.Roles...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	return out
}
