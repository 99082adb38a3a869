package engine

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	"github.com/dev-mohitbeniwal/warden/api/catalog"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/model"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
	"github.com/dev-mohitbeniwal/warden/api/session"
	"github.com/dev-mohitbeniwal/warden/api/store"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

type fixture struct {
	engine   *Engine
	users    *store.UserStore
	sessions *session.Manager
	sink     *audit.Sink
	bus      *util.EventBus
	clock    time.Time
}

// newFixture builds a fully wired engine with a deterministic clock. The
// default clock sits at 10:00 UTC, inside business hours.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	permissionCatalog := catalog.NewPermissionCatalog()
	for _, permission := range []model.Permission{
		{ID: "doc-read", Resource: "documents/", AccessTypes: []model.AccessType{model.AccessRead}, RequiredTier: model.TierPublic},
		{ID: "doc-delete", Resource: "documents/", AccessTypes: []model.AccessType{model.AccessDelete}, RequiredTier: model.TierPrivileged},
		{ID: "identity-read", Resource: "identity/", AccessTypes: []model.AccessType{model.AccessRead}, RequiredTier: model.TierPublic},
		{ID: "region-read", Resource: "regional/", AccessTypes: []model.AccessType{model.AccessRead}, RequiredTier: model.TierPublic, ContextConditions: map[string]string{"region": "eu"}},
	} {
		require.NoError(t, permissionCatalog.Register(permission))
	}

	roleGraph := catalog.NewRoleGraph(permissionCatalog)
	require.NoError(t, roleGraph.Register(model.Role{
		ID:          "viewer",
		Tier:        model.TierPublic,
		Permissions: []string{"doc-read", "identity-read", "region-read"},
	}))
	require.NoError(t, roleGraph.Register(model.Role{
		ID:           "operator",
		Tier:         model.TierPrivileged,
		Permissions:  []string{"doc-delete"},
		InheritsFrom: []string{"viewer"},
	}))

	sink := audit.NewSink(256)
	auditSvc := audit.NewService(sink, nil)
	bus := util.NewEventBus()
	userStore := store.NewUserStore(roleGraph, auditSvc, bus, 100)
	sessionManager := session.NewManager(auditSvc, bus, 8*time.Hour, time.Minute)

	f := &fixture{
		users:    userStore,
		sessions: sessionManager,
		sink:     sink,
		bus:      bus,
		clock:    time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
	}

	f.engine = NewEngine(permissionCatalog, roleGraph, userStore, sessionManager, auditSvc, bus, nil, Config{
		DecisionCacheTTL: 30 * time.Second,
	})
	f.engine.now = func() time.Time { return f.clock }
	return f
}

type userSpec struct {
	username   string
	tier       model.Tier
	roles      []string
	unverified bool
	trustLevel int
	noClear    bool
}

func (f *fixture) createUser(t *testing.T, spec userSpec) model.User {
	t.Helper()
	trust := spec.trustLevel
	if trust == 0 {
		trust = 1
	}
	user, err := f.users.Create(context.Background(), store.CreateUserRequest{
		Username:          spec.username,
		Tier:              spec.tier,
		MaxTier:           model.TierSystem,
		Roles:             spec.roles,
		IdentityVerified:  !spec.unverified,
		TrustLevel:        trust,
		ExternalClearance: !spec.noClear,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) login(t *testing.T, userID string, mfa bool) model.AccessSession {
	t.Helper()
	user, err := f.users.Get(userID)
	require.NoError(t, err)
	sess, err := f.sessions.Create(context.Background(), user, "password", "192.168.1.10", "test-agent", mfa)
	require.NoError(t, err)
	return sess
}

func request(sessionID, resource string, accessType model.AccessType, requestContext map[string]any) pdp_model.AccessRequest {
	return pdp_model.AccessRequest{
		SessionID:  sessionID,
		Resource:   resource,
		AccessType: accessType,
		Context:    requestContext,
		Timestamp:  time.Now().UTC(),
	}
}

func TestCheckAccess_Allow(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "root", tier: model.TierSystem, roles: []string{"operator"}})
	sess := f.login(t, user.ID, true)

	decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/reports/q1", model.AccessRead, nil))

	assert.Equal(t, model.DecisionAllow, decision.Decision)
	assert.Equal(t, "access granted", decision.Reason)
	assert.InDelta(t, 0.1, decision.RiskScore, 1e-9)
}

func TestCheckAccess_InheritedPermission(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "op", tier: model.TierPrivileged, roles: []string{"operator"}})
	sess := f.login(t, user.ID, true)

	// doc-read comes only from the inherited viewer role.
	decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
	assert.Equal(t, model.DecisionAllow, decision.Decision)
}

func TestCheckAccess_InsufficientTier(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "junior", tier: model.TierStandard, roles: []string{"operator"}})
	sess := f.login(t, user.ID, false)

	decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/reports/q1", model.AccessDelete, nil))

	assert.Equal(t, model.DecisionEscalate, decision.Decision)
	assert.Equal(t, "insufficient tier", decision.Reason)
}

func TestCheckAccess_NoPermission(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "finance/ledger", model.AccessRead, nil))

	assert.Equal(t, model.DecisionDeny, decision.Decision)
	assert.Equal(t, "no permission for resource", decision.Reason)
}

func TestCheckAccess_ContextConditions(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	t.Run("Mismatch", func(t *testing.T) {
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "regional/data", model.AccessRead, map[string]any{"region": "us"}))
		assert.Equal(t, model.DecisionDeny, decision.Decision)
		assert.Equal(t, "context conditions not met", decision.Reason)
	})

	t.Run("MissingKey", func(t *testing.T) {
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "regional/data", model.AccessRead, map[string]any{"other": "x"}))
		assert.Equal(t, model.DecisionDeny, decision.Decision)
	})

	t.Run("Match", func(t *testing.T) {
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "regional/data", model.AccessRead, map[string]any{"region": "eu"}))
		assert.Equal(t, model.DecisionAllow, decision.Decision)
	})
}

func TestCheckAccess_MFAChallenge(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "op", tier: model.TierPrivileged, roles: []string{"operator"}})

	t.Run("SensitiveWithoutMFA", func(t *testing.T) {
		sess := f.login(t, user.ID, false)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/reports/q1", model.AccessDelete, nil))
		assert.Equal(t, model.DecisionChallenge, decision.Decision)
		assert.Equal(t, "MFA required for sensitive operation", decision.Reason)
	})

	t.Run("SensitiveWithMFA", func(t *testing.T) {
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/reports/q1", model.AccessDelete, nil))
		assert.Equal(t, model.DecisionAllow, decision.Decision)
	})
}

func TestCheckAccess_BusinessHours(t *testing.T) {
	f := newFixture(t)
	f.clock = time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)

	t.Run("StandardTierChallenged", func(t *testing.T) {
		user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
		assert.Equal(t, model.DecisionChallenge, decision.Decision)
		assert.Equal(t, "outside business hours", decision.Reason)
	})

	t.Run("PrivilegedTierExempt", func(t *testing.T) {
		user := f.createUser(t, userSpec{username: "op", tier: model.TierPrivileged, roles: []string{"operator"}})
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
		assert.Equal(t, model.DecisionAllow, decision.Decision)
	})
}

func TestCheckAccess_HighRiskMonitor(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "shaky", tier: model.TierElevated, roles: []string{"viewer"}})

	// Nine failed attempts push the risk score to 0.8 without locking the
	// account (the fixture threshold is far higher).
	ctx := context.Background()
	for i := 0; i < 9; i++ {
		_, locked, err := f.users.RecordFailedAttempt(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, locked)
	}

	sess := f.login(t, user.ID, true)
	require.InDelta(t, 0.8, sess.RiskScore, 1e-9)

	decision := f.engine.CheckAccess(ctx, request(sess.ID, "documents/handbook", model.AccessRead, nil))

	assert.Equal(t, model.DecisionMonitor, decision.Decision)
	assert.Equal(t, "access granted | high risk session - monitoring enabled", decision.Reason)
	assert.InDelta(t, 0.8, decision.RiskScore, 1e-9)
}

func TestCheckAccess_DriftEscalates(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, map[string]any{"drift_score": 0.2}))

	assert.Equal(t, model.DecisionEscalate, decision.Decision)
	assert.Contains(t, decision.Reason, "high drift score detected")
}

func TestCheckAccess_AttestationViolations(t *testing.T) {
	f := newFixture(t)

	t.Run("UnverifiedIdentityResource", func(t *testing.T) {
		user := f.createUser(t, userSpec{username: "ghost", tier: model.TierStandard, roles: []string{"viewer"}, unverified: true})
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "identity/profile", model.AccessRead, nil))
		assert.Equal(t, model.DecisionEscalate, decision.Decision)
		assert.Contains(t, decision.Reason, "identity verification required")
	})

	t.Run("CompetencyLevel", func(t *testing.T) {
		user := f.createUser(t, userSpec{username: "novice", tier: model.TierStandard, roles: []string{"viewer"}, trustLevel: 1})
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, map[string]any{"required_level": 3}))
		assert.Equal(t, model.DecisionEscalate, decision.Decision)
		assert.Contains(t, decision.Reason, "competency level 3 required")
	})

	t.Run("DefaultFloorAppliesToEveryResource", func(t *testing.T) {
		// Without an explicit required_level the floor is competency level 1,
		// so a level-0 user is escalated even on an ordinary read.
		user, err := f.users.Create(context.Background(), store.CreateUserRequest{
			Username:          "untrusted",
			Tier:              model.TierStandard,
			MaxTier:           model.TierSystem,
			Roles:             []string{"viewer"},
			IdentityVerified:  true,
			TrustLevel:        0,
			ExternalClearance: true,
		})
		require.NoError(t, err)
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
		assert.Equal(t, model.DecisionEscalate, decision.Decision)
		assert.Contains(t, decision.Reason, "competency level 1 required")
	})

	t.Run("MissingClearance", func(t *testing.T) {
		user := f.createUser(t, userSpec{username: "outsider", tier: model.TierStandard, roles: []string{"viewer"}, noClear: true})
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
		assert.Equal(t, model.DecisionEscalate, decision.Decision)
		assert.Contains(t, decision.Reason, "external clearance missing")
	})

	t.Run("ViolationAppendedToEarlierReason", func(t *testing.T) {
		// An insufficient-tier escalation keeps its reason and gains the
		// attestation violations after a separator.
		user := f.createUser(t, userSpec{username: "both", tier: model.TierStandard, roles: []string{"operator"}, noClear: true})
		sess := f.login(t, user.ID, true)
		decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessDelete, nil))
		assert.Equal(t, model.DecisionEscalate, decision.Decision)
		assert.Contains(t, decision.Reason, "insufficient tier")
		assert.Contains(t, decision.Reason, "external clearance missing")
	})
}

func TestCheckAccess_InvalidSession(t *testing.T) {
	f := newFixture(t)

	decision := f.engine.CheckAccess(context.Background(), request("no-such-session", "documents/handbook", model.AccessRead, nil))

	assert.Equal(t, model.DecisionDeny, decision.Decision)
	assert.Equal(t, "invalid or expired session", decision.Reason)
	assert.Zero(t, decision.RiskScore)
}

func TestCheckAccess_InactiveUser(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	require.NoError(t, f.users.SetActive(context.Background(), user.ID, false))

	decision := f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
	assert.Equal(t, model.DecisionDeny, decision.Decision)
	assert.Equal(t, "user inactive or unknown", decision.Reason)
}

func TestCheckAccess_DeadlineExceeded(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision := f.engine.CheckAccess(ctx, request(sess.ID, "documents/handbook", model.AccessRead, nil))
	assert.Equal(t, model.DecisionEscalate, decision.Decision)
	assert.Equal(t, "access control system error", decision.Reason)
}

func TestCheckAccess_Idempotent(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	req := request(sess.ID, "documents/handbook", model.AccessRead, nil)
	first := f.engine.CheckAccess(context.Background(), req)
	second := f.engine.CheckAccess(context.Background(), req)

	assert.Equal(t, first.Decision, second.Decision)
	assert.Equal(t, first.Reason, second.Reason)
}

func TestCheckAccess_SingleAuditEntryAndCounterPerCall(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	before := f.sink.Len()
	req := request(sess.ID, "documents/handbook", model.AccessRead, nil)

	f.engine.CheckAccess(context.Background(), req)
	assert.Equal(t, before+1, f.sink.Len())

	// A cached hit still audits and counts.
	f.engine.CheckAccess(context.Background(), req)
	assert.Equal(t, before+2, f.sink.Len())

	counters := f.engine.Counters()
	assert.Equal(t, uint64(2), counters.Total)
	assert.Equal(t, uint64(2), counters.Allowed)
}

func TestCheckAccess_CounterPerDecision(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	f.engine.CheckAccess(context.Background(), request(sess.ID, "documents/handbook", model.AccessRead, nil))
	f.engine.CheckAccess(context.Background(), request(sess.ID, "finance/ledger", model.AccessRead, nil))
	f.engine.CheckAccess(context.Background(), request("bogus", "documents/handbook", model.AccessRead, nil))

	counters := f.engine.Counters()
	assert.Equal(t, uint64(3), counters.Total)
	assert.Equal(t, uint64(1), counters.Allowed)
	assert.Equal(t, uint64(2), counters.Denied)
}

// remoteCacheStub stands in for the redis decision tier.
type remoteCacheStub struct {
	mu      sync.Mutex
	entries map[string]pdp_model.AccessDecision
}

func newRemoteCacheStub() *remoteCacheStub {
	return &remoteCacheStub{entries: make(map[string]pdp_model.AccessDecision)}
}

func (s *remoteCacheStub) GetDecision(ctx context.Context, key string) (*pdp_model.AccessDecision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decision, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return &decision, true
}

func (s *remoteCacheStub) SetDecision(ctx context.Context, key string, decision pdp_model.AccessDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = decision
}

func TestCheckAccess_TerminatedSessionDeniedDespiteCache(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	ctx := context.Background()
	req := request(sess.ID, "documents/handbook", model.AccessRead, nil)

	first := f.engine.CheckAccess(ctx, req)
	require.Equal(t, model.DecisionAllow, first.Decision)

	require.NoError(t, f.sessions.Terminate(ctx, sess.ID))

	// The cached ALLOW is still within its TTL, but a revoked session must
	// not be able to redeem it.
	decision := f.engine.CheckAccess(ctx, req)
	assert.Equal(t, model.DecisionDeny, decision.Decision)
	assert.Equal(t, "invalid or expired session", decision.Reason)
}

func TestCheckAccess_TerminatedSessionDeniedDespiteRemoteCache(t *testing.T) {
	f := newFixture(t)
	remote := newRemoteCacheStub()
	f.engine.remote = remote

	user := f.createUser(t, userSpec{username: "alice", tier: model.TierStandard, roles: []string{"viewer"}})
	sess := f.login(t, user.ID, true)

	ctx := context.Background()
	req := request(sess.ID, "documents/handbook", model.AccessRead, nil)

	first := f.engine.CheckAccess(ctx, req)
	require.Equal(t, model.DecisionAllow, first.Decision)
	require.Len(t, remote.entries, 1)

	require.NoError(t, f.sessions.Terminate(ctx, sess.ID))
	// Drop the local tier so the lookup would fall through to the remote one.
	f.engine.PurgeCache()

	decision := f.engine.CheckAccess(ctx, req)
	assert.Equal(t, model.DecisionDeny, decision.Decision)
	assert.Equal(t, "invalid or expired session", decision.Reason)
}

func TestCheckAccess_CacheReflectsStateAfterPurge(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, userSpec{username: "op", tier: model.TierPrivileged, roles: []string{"operator"}})
	sess := f.login(t, user.ID, true)

	ctx := context.Background()
	req := request(sess.ID, "documents/handbook", model.AccessDelete, nil)

	first := f.engine.CheckAccess(ctx, req)
	require.Equal(t, model.DecisionAllow, first.Decision)

	// Dropping the tier does not invalidate the cached verdict on its own.
	require.NoError(t, f.users.UpdateTier(ctx, user.ID, model.TierStandard))
	cached := f.engine.CheckAccess(ctx, req)
	assert.Equal(t, model.DecisionAllow, cached.Decision)

	f.engine.PurgeCache()
	fresh := f.engine.CheckAccess(ctx, req)
	assert.Equal(t, model.DecisionEscalate, fresh.Decision)
}
