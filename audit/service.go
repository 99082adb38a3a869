// api/audit/service.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/warden/api/logging"
)

// Service records audit entries and serves the trail. Recording never fails:
// the in-memory sink is authoritative and the durable repository, when
// configured, is best-effort.
type Service interface {
	Record(ctx context.Context, entry Entry)
	Trail(limit int) []Entry
}

type service struct {
	sink *Sink
	repo Repository
}

// NewService wires the sink and an optional durable repository (may be nil).
func NewService(sink *Sink, repo Repository) Service {
	return &service{sink: sink, repo: repo}
}

func (s *service) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	s.sink.Append(entry)

	if s.repo != nil {
		if err := s.repo.Index(ctx, entry); err != nil {
			logger.Warn("Failed to index audit entry",
				zap.Error(err),
				zap.String("entryID", entry.ID),
				zap.String("eventType", entry.EventType))
		}
	}
}

func (s *service) Trail(limit int) []Entry {
	return s.sink.Snapshot(limit)
}
