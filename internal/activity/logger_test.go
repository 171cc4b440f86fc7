package activity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuehq/revue-api/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
	err     error
	done    chan struct{}
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{err: err, done: make(chan struct{}, 8)}
}

func (s *recordingSink) CreateEntry(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func (s *recordingSink) wait(t *testing.T) *models.AuditEntry {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit write")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[len(s.entries)-1]
}

func TestLoggerRecordBuildsEntry(t *testing.T) {
	sink := newRecordingSink(nil)
	logger := NewLogger(sink, Actor{ID: "user-1", Name: "Reviewer One", Role: models.RoleReviewer}, nil)
	logger.Start(context.Background())
	defer logger.Stop()

	target := "item-1"
	logger.Record(Entry{
		Action:   models.AuditActionReviewApproved,
		TargetID: &target,
		Metadata: map[string]interface{}{"feedback": "ok"},
	})

	entry := sink.wait(t)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "user-1", entry.ActorID)
	assert.Equal(t, models.AuditActionReviewApproved, entry.Action)
	assert.Equal(t, models.RiskLow, entry.RiskLevel)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "item-1", *entry.TargetID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	assert.Equal(t, "ok", meta["feedback"])
}

func TestLoggerDerivesRiskFromAction(t *testing.T) {
	sink := newRecordingSink(nil)
	logger := NewLogger(sink, Actor{ID: "admin-1", Role: models.RoleAdmin}, nil)
	logger.Start(context.Background())
	defer logger.Stop()

	logger.Record(Entry{Action: models.AuditActionBulkReject})
	entry := sink.wait(t)
	assert.Equal(t, models.RiskHigh, entry.RiskLevel)
}

type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) CreateEntry(_ context.Context, _ *models.AuditEntry) error {
	s.started <- struct{}{}
	<-s.release
	return nil
}

func TestLoggerRecordNeverBlocksOnSlowSink(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}, 16), release: make(chan struct{})}
	logger := NewLogger(sink, Actor{ID: "user-1"}, nil)
	logger.Start(context.Background())
	defer logger.Stop()
	defer close(sink.release)

	logger.Record(Entry{Action: models.AuditActionStreamStarted})
	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first entry")
	}

	// The only worker is parked inside the sink. Pile on more entries
	// than the dispatch buffer holds; overflow is dropped, never queued
	// against the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			logger.Record(Entry{Action: models.AuditActionStreamCancelled})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked behind a slow audit sink")
	}
}

func TestLoggerSwallowsSinkFailure(t *testing.T) {
	sink := newRecordingSink(errors.New("audit store down"))
	logger := NewLogger(sink, Actor{ID: "user-1"}, nil)
	logger.Start(context.Background())
	defer logger.Stop()

	// Record must not block or panic when the sink fails, and the
	// failed write must not be retried.
	logger.Record(Entry{Action: models.AuditActionStreamStarted})
	sink.wait(t)

	logger.Record(Entry{Action: models.AuditActionStreamCancelled})
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.entries, 2)
	assert.Equal(t, models.AuditActionStreamStarted, sink.entries[0].Action)
	assert.Equal(t, models.AuditActionStreamCancelled, sink.entries[1].Action)
}
