// api/session/manager.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/model"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

// Manager owns all AccessSession instances. Sessions are guarded by per-entry
// mutexes; the manager-level lock only protects the indexes, so concurrent
// checks against unrelated sessions never serialize.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	byUser   map[string]map[string]struct{}

	auditSvc audit.Service
	eventBus *util.EventBus

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type sessionEntry struct {
	mu      sync.Mutex
	session model.AccessSession
}

func NewManager(auditSvc audit.Service, eventBus *util.EventBus, ttl, sweepInterval time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &Manager{
		sessions:      make(map[string]*sessionEntry),
		byUser:        make(map[string]map[string]struct{}),
		auditSvc:      auditSvc,
		eventBus:      eventBus,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Create builds a new active session for the user. Locked or inactive users
// are rejected before any session state is allocated.
func (m *Manager) Create(ctx context.Context, user model.User, authMethod, sourceIP, userAgent string, mfaVerified bool) (model.AccessSession, error) {
	if user.Locked {
		return model.AccessSession{}, warden_errors.ErrUserLocked
	}
	if !user.Active {
		return model.AccessSession{}, warden_errors.ErrUserInactive
	}

	now := m.now().UTC()
	session := model.AccessSession{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Tier:         user.CurrentTier,
		Status:       model.SessionActive,
		AuthMethod:   authMethod,
		SourceIP:     sourceIP,
		UserAgent:    userAgent,
		MFAVerified:  mfaVerified,
		RiskScore:    computeRiskScore(user, sourceIP, now),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActivity: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = &sessionEntry{session: session}
	if m.byUser[user.ID] == nil {
		m.byUser[user.ID] = make(map[string]struct{})
	}
	m.byUser[user.ID][session.ID] = struct{}{}
	m.mu.Unlock()

	m.auditSvc.Record(ctx, audit.Entry{
		EventType: audit.EventSessionCreated,
		UserID:    user.ID,
		SessionID: session.ID,
		SourceIP:  sourceIP,
		Reason:    "session created via " + authMethod,
	})
	m.eventBus.Publish(ctx, util.EventSessionCreated, session.ID)

	logger.Info("Session created",
		zap.String("sessionID", session.ID),
		zap.String("userID", user.ID),
		zap.Float64("riskScore", session.RiskScore))
	return session, nil
}

// Get returns a live session by id and refreshes its last-activity stamp.
// A session past its expiry is transitioned to EXPIRED and never returned as
// usable, even if still present in the store.
func (m *Manager) Get(ctx context.Context, sessionID string) (model.AccessSession, error) {
	m.mu.RLock()
	entry, exists := m.sessions[sessionID]
	m.mu.RUnlock()
	if !exists {
		return model.AccessSession{}, warden_errors.ErrSessionNotFound
	}

	entry.mu.Lock()

	if entry.session.Status != model.SessionActive {
		entry.mu.Unlock()
		return model.AccessSession{}, warden_errors.ErrInvalidSession
	}

	now := m.now().UTC()
	if entry.session.Expired(now) {
		entry.session.Status = model.SessionExpired
		userID := entry.session.UserID
		entry.mu.Unlock()

		m.removeFromIndex(userID, sessionID)
		m.auditSvc.Record(ctx, audit.Entry{
			EventType: audit.EventSessionExpired,
			UserID:    userID,
			SessionID: sessionID,
			Reason:    "session expired",
		})
		return model.AccessSession{}, warden_errors.ErrSessionExpired
	}

	entry.session.LastActivity = now
	session := entry.session
	entry.mu.Unlock()
	return session, nil
}

// Terminate explicitly ends a session. Terminal states are absorbing, so a
// second terminate (or terminating an expired session) is a no-op error.
func (m *Manager) Terminate(ctx context.Context, sessionID string) error {
	return m.terminate(ctx, sessionID, model.SessionTerminated, "session terminated")
}

// TerminateAllForUser ends every active session belonging to the user and
// returns how many were ended. The status is LOCKED when triggered by a user
// lockout, TERMINATED otherwise.
func (m *Manager) TerminateAllForUser(ctx context.Context, userID string, status model.SessionStatus) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.byUser[userID]))
	for id := range m.byUser[userID] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	reason := "session terminated"
	if status == model.SessionLocked {
		reason = "owning user locked"
	}

	count := 0
	for _, id := range ids {
		if err := m.terminate(ctx, id, status, reason); err == nil {
			count++
		}
	}
	return count
}

func (m *Manager) terminate(ctx context.Context, sessionID string, status model.SessionStatus, reason string) error {
	m.mu.RLock()
	entry, exists := m.sessions[sessionID]
	m.mu.RUnlock()
	if !exists {
		return warden_errors.ErrSessionNotFound
	}

	entry.mu.Lock()
	if entry.session.Status.Terminal() {
		entry.mu.Unlock()
		return warden_errors.ErrInvalidSession
	}
	entry.session.Status = status
	userID := entry.session.UserID
	entry.mu.Unlock()

	m.removeFromIndex(userID, sessionID)

	m.auditSvc.Record(ctx, audit.Entry{
		EventType: audit.EventSessionTerminated,
		UserID:    userID,
		SessionID: sessionID,
		Reason:    reason,
	})
	m.eventBus.Publish(ctx, util.EventSessionTerminated, sessionID)
	return nil
}

// ActiveCount returns the number of sessions still in the ACTIVE state.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	entries := make([]*sessionEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	count := 0
	now := m.now().UTC()
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.Status == model.SessionActive && !entry.session.Expired(now) {
			count++
		}
		entry.mu.Unlock()
	}
	return count
}

// StartSweeper launches the background expiry sweep. The sweeper never blocks
// foreground access checks; it only takes per-entry locks briefly.
func (m *Manager) StartSweeper() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stop:
				// Finish the in-flight pass before exiting.
				m.sweep()
				return
			}
		}
	}()
}

// StopSweeper signals the sweeper to stop and waits for the final pass.
func (m *Manager) StopSweeper() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// sweep expires overdue ACTIVE sessions and drops records that were already
// terminal before this pass. A terminal session is therefore retained for at
// most one sweep interval before its record is deleted.
func (m *Manager) sweep() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	ctx := context.Background()
	now := m.now().UTC()
	expired := 0
	removed := 0

	for _, id := range ids {
		m.mu.RLock()
		entry, exists := m.sessions[id]
		m.mu.RUnlock()
		if !exists {
			continue
		}

		entry.mu.Lock()
		status := entry.session.Status
		userID := entry.session.UserID
		shouldExpire := status == model.SessionActive && entry.session.Expired(now)
		if shouldExpire {
			entry.session.Status = model.SessionExpired
		}
		entry.mu.Unlock()

		switch {
		case shouldExpire:
			expired++
			m.removeFromIndex(userID, id)
			m.auditSvc.Record(ctx, audit.Entry{
				EventType: audit.EventSessionExpired,
				UserID:    userID,
				SessionID: id,
				Reason:    "session expired during sweep",
			})
		case status.Terminal():
			removed++
			m.mu.Lock()
			delete(m.sessions, id)
			m.mu.Unlock()
			m.removeFromIndex(userID, id)
		}
	}

	if expired > 0 || removed > 0 {
		logger.Info("Session sweep completed",
			zap.Int("expired", expired),
			zap.Int("removed", removed))
	}
}

func (m *Manager) removeFromIndex(userID, sessionID string) {
	m.mu.Lock()
	delete(m.byUser[userID], sessionID)
	if len(m.byUser[userID]) == 0 {
		delete(m.byUser, userID)
	}
	m.mu.Unlock()
}
