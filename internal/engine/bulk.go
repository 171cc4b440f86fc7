package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/activity"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/querycache"
)

// DecideBulk applies one logical decision over a set of items. Every
// cached list is snapshotted wholesale before the optimistic pass, so
// on failure the lists are restored verbatim. A partial server-side
// failure is a success for cache purposes: invalidation converges
// per-item truth, and the structured result reports what failed.
func (m *Mutator) DecideBulk(ctx context.Context, input BulkDecisionInput) (*models.BatchDecisionResult, error) {
	m.store.CancelKindInFlight(querycache.KindReviewList)

	// Snapshot every cached list in full, affected or not.
	snapshots := make(map[querycache.Key][]models.ReviewItem)
	for _, key := range m.store.Keys(querycache.KindReviewList) {
		raw, ok := m.store.Get(key)
		if !ok {
			continue
		}
		if items, ok := raw.([]models.ReviewItem); ok {
			snapshots[key] = items
		}
	}

	idSet := make(map[string]struct{}, len(input.IDs))
	for _, id := range input.IDs {
		idSet[id] = struct{}{}
	}

	now := m.now().UTC()
	for key, items := range snapshots {
		patched := false
		next := make([]models.ReviewItem, len(items))
		for i, item := range items {
			if _, affected := idSet[item.ID]; affected {
				next[i] = DecisionSuccessor(item, input.Status, input.Feedback, now)
				patched = true
			} else {
				next[i] = item
			}
		}
		if patched {
			m.store.Set(key, next)
		}
	}

	result, err := m.api.UpdateDecisionBatch(ctx, input.IDs, input.Status, input.Feedback)
	if err != nil {
		for key, items := range snapshots {
			m.store.Set(key, items)
		}
		m.store.InvalidateKind(querycache.KindReviewList)
		m.store.InvalidateKind(querycache.KindMetrics)
		m.logger.Warn("bulk decision rolled back",
			zap.Int("count", len(input.IDs)),
			zap.String("status", string(input.Status)),
			zap.Error(err))
		return nil, fmt.Errorf("bulk update decision: %w", err)
	}

	// Exactly one grouped audit entry for the whole operation.
	m.activity.Record(activity.Entry{
		Action: bulkAction(input.Status),
		Metadata: map[string]interface{}{
			"count":    len(input.IDs),
			"ids":      input.IDs,
			"feedback": feedbackValue(input.Feedback),
		},
	})

	m.store.InvalidateKind(querycache.KindReviewList)
	m.store.InvalidateKind(querycache.KindMetrics)

	return result, nil
}

func bulkAction(status models.ReviewStatus) models.AuditAction {
	if status == models.StatusApproved {
		return models.AuditActionBulkApprove
	}
	return models.AuditActionBulkReject
}
