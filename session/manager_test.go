package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	"github.com/dev-mohitbeniwal/warden/api/model"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

func newTestManager(t *testing.T) (*Manager, *audit.Sink) {
	t.Helper()
	sink := audit.NewSink(64)
	return NewManager(audit.NewService(sink, nil), util.NewEventBus(), time.Hour, time.Minute), sink
}

func TestCreate_RejectsLockedAndInactive(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	locked := baselineUser()
	locked.Locked = true
	_, err := manager.Create(ctx, locked, "password", "192.168.1.10", "ua", false)
	assert.ErrorIs(t, err, warden_errors.ErrUserLocked)

	inactive := baselineUser()
	inactive.Active = false
	_, err = manager.Create(ctx, inactive, "password", "192.168.1.10", "ua", false)
	assert.ErrorIs(t, err, warden_errors.ErrUserInactive)

	assert.Equal(t, 0, manager.ActiveCount())
}

func TestGet_RefreshesActivity(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	sess, err := manager.Create(ctx, baselineUser(), "password", "192.168.1.10", "ua", true)
	require.NoError(t, err)

	current = current.Add(10 * time.Minute)
	got, err := manager.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, current, got.LastActivity)
	assert.True(t, got.MFAVerified)
}

func TestGet_ExpiredSessionNeverReturned(t *testing.T) {
	manager, sink := newTestManager(t)
	ctx := context.Background()

	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	sess, err := manager.Create(ctx, baselineUser(), "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = manager.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, warden_errors.ErrSessionExpired)

	// Expiry is terminal: a second lookup reports an invalid session.
	_, err = manager.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, warden_errors.ErrInvalidSession)

	entries := sink.Snapshot(0)
	found := false
	for _, entry := range entries {
		if entry.EventType == audit.EventSessionExpired && entry.SessionID == sess.ID {
			found = true
		}
	}
	assert.True(t, found, "expected a session expiry audit entry")
}

func TestGet_UnknownSession(t *testing.T) {
	manager, _ := newTestManager(t)
	_, err := manager.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, warden_errors.ErrSessionNotFound)
}

func TestTerminate_TerminalStatesAbsorbing(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.Create(ctx, baselineUser(), "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)

	require.NoError(t, manager.Terminate(ctx, sess.ID))
	assert.ErrorIs(t, manager.Terminate(ctx, sess.ID), warden_errors.ErrInvalidSession)

	_, err = manager.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, warden_errors.ErrInvalidSession)
}

func TestTerminateAllForUser(t *testing.T) {
	manager, sink := newTestManager(t)
	ctx := context.Background()

	user := baselineUser()
	for i := 0; i < 3; i++ {
		_, err := manager.Create(ctx, user, "password", "192.168.1.10", "ua", false)
		require.NoError(t, err)
	}

	other := baselineUser()
	other.ID = "u2"
	otherSess, err := manager.Create(ctx, other, "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)

	count := manager.TerminateAllForUser(ctx, user.ID, model.SessionLocked)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, manager.ActiveCount())

	// The unrelated user's session survives.
	_, err = manager.Get(ctx, otherSess.ID)
	assert.NoError(t, err)

	// Lockout terminations carry the lockout reason.
	lockedReasons := 0
	for _, entry := range sink.Snapshot(0) {
		if entry.EventType == audit.EventSessionTerminated && entry.Reason == "owning user locked" {
			lockedReasons++
		}
	}
	assert.Equal(t, 3, lockedReasons)

	// Idempotent: a second pass finds nothing left to end.
	assert.Equal(t, 0, manager.TerminateAllForUser(ctx, user.ID, model.SessionLocked))
}

func TestSweep_DropsTerminalRecords(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.Create(ctx, baselineUser(), "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)
	require.NoError(t, manager.Terminate(ctx, sess.ID))

	manager.sweep()

	manager.mu.RLock()
	_, exists := manager.sessions[sess.ID]
	manager.mu.RUnlock()
	assert.False(t, exists, "terminated session record should be deleted by the sweep")

	_, err = manager.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, warden_errors.ErrSessionNotFound)
}

func TestSweep_RetainsFreshlyExpiredForOnePass(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	sess, err := manager.Create(ctx, baselineUser(), "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	// First pass transitions the session to EXPIRED but keeps the record.
	manager.sweep()
	manager.mu.RLock()
	_, exists := manager.sessions[sess.ID]
	manager.mu.RUnlock()
	assert.True(t, exists)

	_, err = manager.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, warden_errors.ErrInvalidSession)

	// The next pass drops it.
	manager.sweep()
	manager.mu.RLock()
	_, exists = manager.sessions[sess.ID]
	manager.mu.RUnlock()
	assert.False(t, exists)
}

func TestGet_ExpiryCleansUserIndex(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	user := baselineUser()
	sess, err := manager.Create(ctx, user, "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = manager.Get(ctx, sess.ID)
	require.ErrorIs(t, err, warden_errors.ErrSessionExpired)

	manager.mu.RLock()
	_, indexed := manager.byUser[user.ID][sess.ID]
	manager.mu.RUnlock()
	assert.False(t, indexed, "expired session should leave the per-user index")

	// The record itself is dropped on the next sweep.
	manager.sweep()
	manager.mu.RLock()
	_, exists := manager.sessions[sess.ID]
	manager.mu.RUnlock()
	assert.False(t, exists)
}

func TestSweeper_ExpiresSessions(t *testing.T) {
	sink := audit.NewSink(64)
	manager := NewManager(audit.NewService(sink, nil), util.NewEventBus(), time.Hour, 10*time.Millisecond)

	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	ctx := context.Background()
	sess, err := manager.Create(ctx, baselineUser(), "password", "192.168.1.10", "ua", false)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	manager.StartSweeper()
	defer manager.StopSweeper()

	assert.Eventually(t, func() bool {
		_, err := manager.Get(ctx, sess.ID)
		return err != nil
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, manager.ActiveCount())
}

func TestStopSweeper_Idempotent(t *testing.T) {
	manager, _ := newTestManager(t)
	manager.StartSweeper()
	manager.StopSweeper()
	manager.StopSweeper()
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, model.SessionActive.Terminal())
	assert.True(t, model.SessionExpired.Terminal())
	assert.True(t, model.SessionTerminated.Terminal())
	assert.True(t, model.SessionLocked.Terminal())
}
