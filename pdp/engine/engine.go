// api/pdp/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	"github.com/dev-mohitbeniwal/warden/api/catalog"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/metrics"
	"github.com/dev-mohitbeniwal/warden/api/model"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
	"github.com/dev-mohitbeniwal/warden/api/session"
	"github.com/dev-mohitbeniwal/warden/api/store"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

// Config carries the decision-engine thresholds.
type Config struct {
	BusinessHoursStart int
	BusinessHoursEnd   int
	HighRiskThreshold  float64
	DriftThreshold     float64
	DecisionCacheSize  int
	DecisionCacheTTL   time.Duration
}

// Engine evaluates access requests through four ordered layers. Each layer
// can only make the verdict more restrictive than the layer before it.
type Engine struct {
	catalog  *catalog.PermissionCatalog
	roles    *catalog.RoleGraph
	users    *store.UserStore
	sessions *session.Manager
	auditSvc audit.Service
	eventBus *util.EventBus

	cache  *decisionCache
	remote RemoteDecisionCache

	cfg Config
	now func() time.Time

	total      atomic.Uint64
	allowed    atomic.Uint64
	denied     atomic.Uint64
	challenged atomic.Uint64
	escalated  atomic.Uint64
	monitored  atomic.Uint64
}

func NewEngine(
	permissionCatalog *catalog.PermissionCatalog,
	roleGraph *catalog.RoleGraph,
	userStore *store.UserStore,
	sessionManager *session.Manager,
	auditSvc audit.Service,
	eventBus *util.EventBus,
	remote RemoteDecisionCache,
	cfg Config,
) *Engine {
	if cfg.BusinessHoursStart == 0 && cfg.BusinessHoursEnd == 0 {
		cfg.BusinessHoursStart = 6
		cfg.BusinessHoursEnd = 22
	}
	if cfg.HighRiskThreshold == 0 {
		cfg.HighRiskThreshold = 0.7
	}
	if cfg.DriftThreshold == 0 {
		cfg.DriftThreshold = 0.15
	}

	e := &Engine{
		catalog:  permissionCatalog,
		roles:    roleGraph,
		users:    userStore,
		sessions: sessionManager,
		auditSvc: auditSvc,
		eventBus: eventBus,
		remote:   remote,
		cfg:      cfg,
		now:      time.Now,
	}
	e.cache = newDecisionCache(cfg.DecisionCacheSize, cfg.DecisionCacheTTL, func() time.Time { return e.now() })

	// Cached verdicts become stale the moment user or role state changes.
	for _, eventType := range []string{util.EventUserLocked, util.EventUserUnlocked, util.EventRoleChanged} {
		eventBus.Subscribe(eventType, func(ctx context.Context, event util.Event) error {
			e.cache.Purge()
			return nil
		})
	}
	return e
}

// CheckAccess runs the layered evaluation and always returns a decision.
// Internal failures and exceeded deadlines produce a conservative ESCALATE;
// nothing ever defaults to ALLOW on error.
func (e *Engine) CheckAccess(ctx context.Context, request pdp_model.AccessRequest) (decision pdp_model.AccessDecision) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Access check panicked",
				zap.Any("panic", r),
				zap.String("sessionID", request.SessionID),
				zap.String("resource", request.Resource))
			decision = e.systemError()
		}
		e.finalize(ctx, request, &decision, e.now().Sub(start))
	}()

	if deadlineExceeded(ctx) {
		return e.systemError()
	}

	// Layer 0: session validity. Runs before any cache lookup so a revoked or
	// expired session is denied even while a cached verdict for it is still
	// within its TTL, in the local map or in redis.
	sess, err := e.sessions.Get(ctx, request.SessionID)
	if err != nil {
		return e.deny("invalid or expired session", 0)
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", request.SessionID, request.Resource, request.AccessType)
	cacheable := len(request.Context) == 0
	if cacheable {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached
		}
		if e.remote != nil {
			if cached, ok := e.remote.GetDecision(ctx, cacheKey); ok {
				return *cached
			}
		}
	}

	decision = e.evaluate(ctx, sess, request)

	if cacheable {
		e.cache.Set(cacheKey, decision)
		if e.remote != nil {
			e.remote.SetDecision(ctx, cacheKey, decision)
		}
	}
	return decision
}

func (e *Engine) evaluate(ctx context.Context, sess model.AccessSession, request pdp_model.AccessRequest) pdp_model.AccessDecision {
	user, err := e.users.Get(sess.UserID)
	if err != nil || !user.Active {
		return e.deny("user inactive or unknown", sess.RiskScore)
	}

	if deadlineExceeded(ctx) {
		return e.systemError()
	}

	// Layer 1: permission resolution.
	verdict, reason := e.resolveLayer(user, request)
	if verdict == model.DecisionDeny {
		return e.result(verdict, reason, sess.RiskScore)
	}

	if deadlineExceeded(ctx) {
		return e.systemError()
	}

	// Layer 2: security policy, only tightens an ALLOW.
	if verdict == model.DecisionAllow {
		verdict, reason = e.policyLayer(user, sess, request, verdict, reason)
	}

	// Layer 3: external trust attestation, skipped only on DENY.
	verdict, reason = e.attestationLayer(user, request, verdict, reason)

	// Layer 4: risk adjustment on an otherwise clean ALLOW.
	if verdict == model.DecisionAllow && sess.RiskScore > e.cfg.HighRiskThreshold {
		verdict = model.DecisionMonitor
		reason = reason + " | high risk session - monitoring enabled"
	}

	return e.result(verdict, reason, sess.RiskScore)
}

func (e *Engine) result(verdict model.Decision, reason string, riskScore float64) pdp_model.AccessDecision {
	return pdp_model.AccessDecision{
		Decision:    verdict,
		Reason:      reason,
		RiskScore:   riskScore,
		EvaluatedAt: e.now().UTC(),
	}
}

func (e *Engine) deny(reason string, riskScore float64) pdp_model.AccessDecision {
	return e.result(model.DecisionDeny, reason, riskScore)
}

func (e *Engine) systemError() pdp_model.AccessDecision {
	return e.result(model.DecisionEscalate, "access control system error", 0)
}

// finalize writes exactly one audit entry and one counter update per
// invocation, whatever layer produced the decision.
func (e *Engine) finalize(ctx context.Context, request pdp_model.AccessRequest, decision *pdp_model.AccessDecision, elapsed time.Duration) {
	e.total.Add(1)
	switch decision.Decision {
	case model.DecisionAllow:
		e.allowed.Add(1)
	case model.DecisionDeny:
		e.denied.Add(1)
	case model.DecisionChallenge:
		e.challenged.Add(1)
	case model.DecisionEscalate:
		e.escalated.Add(1)
	case model.DecisionMonitor:
		e.monitored.Add(1)
	}
	metrics.ObserveCheck(string(decision.Decision), elapsed.Seconds())

	e.auditSvc.Record(ctx, audit.Entry{
		EventType:  audit.EventAccessCheck,
		SessionID:  request.SessionID,
		Resource:   request.Resource,
		AccessType: string(request.AccessType),
		Decision:   string(decision.Decision),
		Reason:     decision.Reason,
	})

	if decision.Decision == model.DecisionDeny {
		e.eventBus.Publish(ctx, util.EventAccessDenied, request)
	}
}

// Counters returns the cumulative request counters for status reporting.
func (e *Engine) Counters() model.RequestCounters {
	return model.RequestCounters{
		Total:      e.total.Load(),
		Allowed:    e.allowed.Load(),
		Denied:     e.denied.Load(),
		Challenged: e.challenged.Load(),
		Escalated:  e.escalated.Load(),
		Monitored:  e.monitored.Load(),
	}
}

// PurgeCache drops all locally cached decisions.
func (e *Engine) PurgeCache() {
	e.cache.Purge()
}

func deadlineExceeded(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
