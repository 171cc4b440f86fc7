// Package engine applies review decisions optimistically against the
// query cache, reconciling with server truth on success and rolling
// back to the pre-mutation snapshot on failure.
package engine

import (
	"time"

	"github.com/revuehq/revue-api/internal/models"
)

// DecisionSuccessor computes the optimistic result of applying a
// decision to an item: the entity as it is expected to look once the
// server confirms. ReviewedAt is set exactly when the status leaves
// PENDING and cleared when it returns to it.
func DecisionSuccessor(item models.ReviewItem, status models.ReviewStatus, feedback *string, now time.Time) models.ReviewItem {
	next := item
	next.Status = status
	next.Feedback = feedback
	if status != models.StatusPending {
		reviewedAt := now
		next.ReviewedAt = &reviewedAt
	} else {
		next.ReviewedAt = nil
	}
	next.UpdatedAt = now
	return next
}
