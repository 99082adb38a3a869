// test/mock/service.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	"github.com/dev-mohitbeniwal/warden/api/model"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
	"github.com/dev-mohitbeniwal/warden/api/service"
)

// MockAccessService is a mock implementation of service.IAccessService
type MockAccessService struct {
	mock.Mock
}

var _ service.IAccessService = &MockAccessService{}

func (m *MockAccessService) Authenticate(ctx context.Context, req service.AuthRequest) (*model.AccessSession, error) {
	args := m.Called(ctx, req)
	sess, _ := args.Get(0).(*model.AccessSession)
	return sess, args.Error(1)
}

func (m *MockAccessService) CheckAccess(ctx context.Context, req pdp_model.AccessRequest) pdp_model.AccessDecision {
	args := m.Called(ctx, req)
	return args.Get(0).(pdp_model.AccessDecision)
}

func (m *MockAccessService) Logout(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockAccessService) TerminateUserSessions(ctx context.Context, userID string) int {
	args := m.Called(ctx, userID)
	return args.Int(0)
}

func (m *MockAccessService) AuditTrail(limit int) []audit.Entry {
	args := m.Called(limit)
	entries, _ := args.Get(0).([]audit.Entry)
	return entries
}

func (m *MockAccessService) Status() model.StatusSnapshot {
	args := m.Called()
	return args.Get(0).(model.StatusSnapshot)
}
