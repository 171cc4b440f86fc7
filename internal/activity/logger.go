// Package activity emits and shapes audit trail records. Writes are
// fire-and-forget: a failed write is reported to the diagnostic log and
// never reaches the operation that triggered it.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/audit"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/pkg/jobs"
)

// Entry is the caller-facing audit payload. Risk level is derived from
// the action on build, never accepted from the caller.
type Entry struct {
	Action   models.AuditAction
	TargetID *string
	GroupID  *string
	Metadata map[string]interface{}
}

// Sink persists built audit entries.
type Sink interface {
	CreateEntry(ctx context.Context, entry *models.AuditEntry) error
}

// Actor identifies who audit entries are attributed to.
type Actor struct {
	ID   string
	Name string
	Role models.UserRole
}

// Logger dispatches audit writes through a background queue so the
// invoking operation never waits on, or fails because of, the write.
type Logger struct {
	sink   Sink
	actor  Actor
	queue  *jobs.Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewLogger builds a logger for the given actor.
func NewLogger(sink Sink, actor Actor, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Logger{sink: sink, actor: actor, logger: logger, now: time.Now}
	l.queue = jobs.NewQueue("audit-log", l.handle, jobs.QueueConfig{
		Workers: 1,
		Logger:  logger,
	})
	return l
}

// Start begins background dispatch.
func (l *Logger) Start(ctx context.Context) {
	l.queue.Start(ctx)
}

// Stop drains the dispatcher.
func (l *Logger) Stop() {
	l.queue.Stop()
}

// Record builds and dispatches one audit entry. It returns immediately;
// the write happens on a queue worker. When the dispatch buffer is full
// the entry is dropped rather than stalling the caller.
func (l *Logger) Record(e Entry) {
	entry := l.build(e)
	job := jobs.Job{ID: entry.ID, Type: string(e.Action), Payload: entry}
	if err := l.queue.TryEnqueue(job); err != nil {
		l.logger.Warn("audit dispatch dropped",
			zap.String("action", string(e.Action)),
			zap.Error(err))
	}
}

func (l *Logger) build(e Entry) *models.AuditEntry {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   l.actor.ID,
		ActorName: l.actor.Name,
		ActorRole: l.actor.Role,
		Action:    e.Action,
		TargetID:  e.TargetID,
		GroupID:   e.GroupID,
		RiskLevel: audit.Classify(e.Action),
		CreatedAt: l.now().UTC(),
	}
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			entry.Metadata = raw
		}
	}
	return entry
}

func (l *Logger) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditEntry)
	if !ok {
		return nil
	}
	if err := l.sink.CreateEntry(ctx, entry); err != nil {
		// Best-effort telemetry: report and swallow so the queue does
		// not retry.
		l.logger.Warn("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
	return nil
}
