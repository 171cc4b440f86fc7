package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/activity"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/querycache"
)

// DecisionAPI is the remote endpoint the mutators reconcile against.
type DecisionAPI interface {
	UpdateDecision(ctx context.Context, itemID string, status models.ReviewStatus, feedback *string) (*models.ReviewItem, error)
	UpdateDecisionBatch(ctx context.Context, ids []string, status models.ReviewStatus, feedback *string) (*models.BatchDecisionResult, error)
}

type activitySink interface {
	Record(entry activity.Entry)
}

// DecisionInput describes a single-item decision.
type DecisionInput struct {
	ItemID   string
	Status   models.ReviewStatus
	Feedback *string
}

// BulkDecisionInput describes one logical decision over a set of items.
type BulkDecisionInput struct {
	IDs      []string
	Status   models.ReviewStatus
	Feedback *string
}

// Mutator coordinates optimistic decision mutations against the shared
// query cache. Each invocation is self-contained: it snapshots before
// writing and holds no lock across the remote call.
type Mutator struct {
	store    *querycache.Store
	api      DecisionAPI
	activity activitySink
	logger   *zap.Logger
	now      func() time.Time
}

// NewMutator builds a mutator over the given store and remote API.
func NewMutator(store *querycache.Store, api DecisionAPI, sink activitySink, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{store: store, api: api, activity: sink, logger: logger, now: time.Now}
}

// Decide applies one item's status transition: optimistic cache write,
// remote call, then reconcile or roll back. On success the detail entry
// holds the exact server-returned entity and the affected namespaces
// are invalidated for refetch.
func (m *Mutator) Decide(ctx context.Context, input DecisionInput) (*models.ReviewItem, error) {
	itemKey := querycache.ItemKey(input.ItemID)

	// Abort stale in-flight fetches so a late response cannot clobber
	// the optimistic write.
	m.store.CancelInFlight(itemKey)
	m.store.CancelKindInFlight(querycache.KindReviewList)

	snapshot, hadSnapshot := m.cachedItem(itemKey)
	if hadSnapshot {
		successor := DecisionSuccessor(snapshot, input.Status, input.Feedback, m.now().UTC())
		m.store.Set(itemKey, successor)
		m.replaceInLists(successor)
	}

	updated, err := m.api.UpdateDecision(ctx, input.ItemID, input.Status, input.Feedback)
	if err != nil {
		if hadSnapshot {
			m.store.Set(itemKey, snapshot)
		}
		// Lists are not restored item by item; invalidation forces a
		// refetch so no optimistic write is left dangling.
		m.store.InvalidateKind(querycache.KindReviewList)
		m.logger.Warn("decision rolled back",
			zap.String("item_id", input.ItemID),
			zap.String("status", string(input.Status)),
			zap.Error(err))
		return nil, fmt.Errorf("update decision for %s: %w", input.ItemID, err)
	}

	// Server truth wins over the optimistic guess.
	m.store.Set(itemKey, *updated)

	m.activity.Record(activity.Entry{
		Action:   decisionAction(input.Status),
		TargetID: &input.ItemID,
		Metadata: map[string]interface{}{"feedback": feedbackValue(input.Feedback)},
	})

	m.store.Invalidate(itemKey)
	m.store.InvalidateKind(querycache.KindReviewList)
	m.store.InvalidateKind(querycache.KindMetrics)

	return updated, nil
}

func (m *Mutator) cachedItem(key querycache.Key) (models.ReviewItem, bool) {
	raw, ok := m.store.Get(key)
	if !ok {
		return models.ReviewItem{}, false
	}
	item, ok := raw.(models.ReviewItem)
	return item, ok
}

// replaceInLists swaps the successor into every cached list containing
// the item, preserving order and leaving all other items untouched.
func (m *Mutator) replaceInLists(successor models.ReviewItem) {
	for _, key := range m.store.Keys(querycache.KindReviewList) {
		raw, ok := m.store.Get(key)
		if !ok {
			continue
		}
		items, ok := raw.([]models.ReviewItem)
		if !ok {
			continue
		}
		patched := false
		next := make([]models.ReviewItem, len(items))
		for i, item := range items {
			if item.ID == successor.ID {
				next[i] = successor
				patched = true
			} else {
				next[i] = item
			}
		}
		if patched {
			m.store.Set(key, next)
		}
	}
}

// decisionAction maps a target status to its audit action. PENDING
// reverts share REVIEW_REJECTED in this simplified mapping.
func decisionAction(status models.ReviewStatus) models.AuditAction {
	if status == models.StatusApproved {
		return models.AuditActionReviewApproved
	}
	return models.AuditActionReviewRejected
}

func feedbackValue(feedback *string) interface{} {
	if feedback == nil {
		return nil
	}
	return *feedback
}
