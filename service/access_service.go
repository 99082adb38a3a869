// api/service/access_service.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/metrics"
	"github.com/dev-mohitbeniwal/warden/api/model"
	"github.com/dev-mohitbeniwal/warden/api/pdp/engine"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
	"github.com/dev-mohitbeniwal/warden/api/session"
	"github.com/dev-mohitbeniwal/warden/api/store"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

// AuthRequest carries one authentication attempt. Credential and MFA
// verification are injected collaborators so the engine never sees raw
// secrets.
type AuthRequest struct {
	Username           string
	CredentialVerifier func() bool
	MFAVerifier        func() bool
	AuthMethod         string
	SourceIP           string
	UserAgent          string
}

// IAccessService is the engine's public call surface.
type IAccessService interface {
	Authenticate(ctx context.Context, req AuthRequest) (*model.AccessSession, error)
	CheckAccess(ctx context.Context, req pdp_model.AccessRequest) pdp_model.AccessDecision
	Logout(ctx context.Context, sessionID string) error
	TerminateUserSessions(ctx context.Context, userID string) int
	AuditTrail(limit int) []audit.Entry
	Status() model.StatusSnapshot
}

// AccessService wires the user store, session manager, decision engine, and
// audit trail behind one facade.
type AccessService struct {
	users    *store.UserStore
	sessions *session.Manager
	engine   *engine.Engine
	auditSvc audit.Service
	eventBus *util.EventBus
}

var _ IAccessService = &AccessService{}

func NewAccessService(
	users *store.UserStore,
	sessions *session.Manager,
	decisionEngine *engine.Engine,
	auditSvc audit.Service,
	eventBus *util.EventBus,
) *AccessService {
	s := &AccessService{
		users:    users,
		sessions: sessions,
		engine:   decisionEngine,
		auditSvc: auditSvc,
		eventBus: eventBus,
	}

	// A lockout anywhere ends every live session the user holds.
	eventBus.Subscribe(util.EventUserLocked, s.handleUserLocked)

	return s
}

func (s *AccessService) handleUserLocked(ctx context.Context, event util.Event) error {
	userID, ok := event.Payload.(string)
	if !ok {
		return nil
	}
	count := s.sessions.TerminateAllForUser(ctx, userID, model.SessionLocked)
	if count > 0 {
		logger.Info("Terminated sessions for locked user",
			zap.String("userID", userID),
			zap.Int("count", count))
	}
	metrics.SetActiveSessions(s.sessions.ActiveCount())
	return nil
}

// Authenticate verifies credentials via the injected collaborators and, on
// success, creates a session. Failed attempts feed the lockout counter.
func (s *AccessService) Authenticate(ctx context.Context, req AuthRequest) (*model.AccessSession, error) {
	user, err := s.users.GetByUsername(req.Username)
	if err != nil {
		s.recordAuthFailure(ctx, "", req, "unknown username")
		return nil, warden_errors.ErrInvalidCredentials
	}

	if user.Locked {
		s.recordAuthFailure(ctx, user.ID, req, "account locked")
		return nil, warden_errors.ErrUserLocked
	}
	if !user.Active {
		s.recordAuthFailure(ctx, user.ID, req, "account inactive")
		return nil, warden_errors.ErrUserInactive
	}

	if req.CredentialVerifier == nil || !req.CredentialVerifier() {
		attempts, locked, recordErr := s.users.RecordFailedAttempt(ctx, user.ID)
		if recordErr != nil {
			logger.Error("Failed to record failed attempt", zap.Error(recordErr), zap.String("userID", user.ID))
		}
		s.recordAuthFailure(ctx, user.ID, req, "invalid credentials")
		logger.Warn("Authentication failed",
			zap.String("username", req.Username),
			zap.Int("failedAttempts", attempts),
			zap.Bool("locked", locked))
		if locked {
			return nil, warden_errors.ErrUserLocked
		}
		return nil, warden_errors.ErrInvalidCredentials
	}

	mfaVerified := req.MFAVerifier != nil && req.MFAVerifier()

	// Risk scoring reads the pre-login state, so the session is created
	// before the login timestamp is refreshed.
	sess, err := s.sessions.Create(ctx, user, req.AuthMethod, req.SourceIP, req.UserAgent, mfaVerified)
	if err != nil {
		s.recordAuthFailure(ctx, user.ID, req, err.Error())
		return nil, err
	}

	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		logger.Warn("Failed to record login time", zap.Error(err), zap.String("userID", user.ID))
	}

	s.auditSvc.Record(ctx, audit.Entry{
		EventType: audit.EventAuthSuccess,
		UserID:    user.ID,
		SessionID: sess.ID,
		SourceIP:  req.SourceIP,
		Reason:    "authentication succeeded",
	})
	metrics.ObserveAuth("success")
	metrics.SetActiveSessions(s.sessions.ActiveCount())

	return &sess, nil
}

func (s *AccessService) recordAuthFailure(ctx context.Context, userID string, req AuthRequest, reason string) {
	s.auditSvc.Record(ctx, audit.Entry{
		EventType: audit.EventAuthFailure,
		UserID:    userID,
		SourceIP:  req.SourceIP,
		Reason:    reason,
	})
	metrics.ObserveAuth("failure")
}

// CheckAccess delegates to the decision engine. The engine audits and counts
// every invocation itself.
func (s *AccessService) CheckAccess(ctx context.Context, req pdp_model.AccessRequest) pdp_model.AccessDecision {
	return s.engine.CheckAccess(ctx, req)
}

// Logout explicitly terminates a session.
func (s *AccessService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.Terminate(ctx, sessionID)
	metrics.SetActiveSessions(s.sessions.ActiveCount())
	return err
}

// TerminateUserSessions ends all of a user's sessions (administrative op).
func (s *AccessService) TerminateUserSessions(ctx context.Context, userID string) int {
	count := s.sessions.TerminateAllForUser(ctx, userID, model.SessionTerminated)
	metrics.SetActiveSessions(s.sessions.ActiveCount())
	return count
}

// AuditTrail returns up to limit recent audit entries, newest first.
func (s *AccessService) AuditTrail(limit int) []audit.Entry {
	return s.auditSvc.Trail(limit)
}

// Status returns the operational snapshot.
func (s *AccessService) Status() model.StatusSnapshot {
	return model.StatusSnapshot{
		TotalUsers:       s.users.Count(),
		ActiveSessions:   s.sessions.ActiveCount(),
		TierDistribution: s.users.TierDistribution(),
		Metrics:          s.engine.Counters(),
	}
}
