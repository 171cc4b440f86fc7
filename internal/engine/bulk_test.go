package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/querycache"
)

func strPtr(s string) *string { return &s }

func TestDecideBulkEmitsSingleGroupedAuditEntry(t *testing.T) {
	store := querycache.NewStore()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.Set(querycache.ListKey("page=1"), []models.ReviewItem{
		pendingItem("item-1", created),
		pendingItem("item-2", created),
		pendingItem("item-3", created),
	})

	api := &fakeAPI{batchResult: &models.BatchDecisionResult{UpdatedIDs: []string{"item-1", "item-2"}}}
	sink := &fakeSink{}
	mutator := NewMutator(store, api, sink, nil)

	result, err := mutator.DecideBulk(context.Background(), BulkDecisionInput{
		IDs:      []string{"item-1", "item-2"},
		Status:   models.StatusRejected,
		Feedback: strPtr("Bulk reject"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"item-1", "item-2"}, result.UpdatedIDs)

	// Exactly one BULK_REJECT entry, never per-item entries.
	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, models.AuditActionBulkReject, entry.Action)
	assert.Equal(t, 2, entry.Metadata["count"])
	assert.Equal(t, []string{"item-1", "item-2"}, entry.Metadata["ids"])
	assert.Equal(t, "Bulk reject", entry.Metadata["feedback"])
}

func TestDecideBulkPatchesOnlyAffectedItems(t *testing.T) {
	store := querycache.NewStore()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.Set(querycache.ListKey("page=1"), []models.ReviewItem{
		pendingItem("item-1", created),
		pendingItem("item-2", created),
	})
	store.Set(querycache.ListKey("status=APPROVED"), []models.ReviewItem{
		pendingItem("item-9", created),
	})

	blocked := make(chan struct{})
	api := &blockingBatchAPI{release: blocked, result: &models.BatchDecisionResult{UpdatedIDs: []string{"item-1"}}}
	mutator := NewMutator(store, api, &fakeSink{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = mutator.DecideBulk(context.Background(), BulkDecisionInput{IDs: []string{"item-1"}, Status: models.StatusApproved})
	}()

	require.Eventually(t, func() bool {
		raw, ok := store.Get(querycache.ListKey("page=1"))
		return ok && raw.([]models.ReviewItem)[0].Status == models.StatusApproved
	}, time.Second, 5*time.Millisecond)

	raw, _ := store.Get(querycache.ListKey("page=1"))
	list := raw.([]models.ReviewItem)
	assert.Equal(t, models.StatusPending, list[1].Status)

	// A list without affected items is left untouched.
	raw, _ = store.Get(querycache.ListKey("status=APPROVED"))
	assert.Equal(t, models.StatusPending, raw.([]models.ReviewItem)[0].Status)

	close(blocked)
	<-done
}

type blockingBatchAPI struct {
	release chan struct{}
	result  *models.BatchDecisionResult
}

func (b *blockingBatchAPI) UpdateDecision(context.Context, string, models.ReviewStatus, *string) (*models.ReviewItem, error) {
	return nil, errors.New("not implemented")
}

func (b *blockingBatchAPI) UpdateDecisionBatch(ctx context.Context, _ []string, _ models.ReviewStatus, _ *string) (*models.BatchDecisionResult, error) {
	select {
	case <-b.release:
		return b.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDecideBulkRestoresListsVerbatimOnFailure(t *testing.T) {
	store := querycache.NewStore()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	original := []models.ReviewItem{
		pendingItem("item-1", created),
		pendingItem("item-2", created),
	}
	store.Set(querycache.ListKey("page=1"), original)

	api := &fakeAPI{batchErr: errors.New("batch exploded")}
	sink := &fakeSink{}
	mutator := NewMutator(store, api, sink, nil)

	_, err := mutator.DecideBulk(context.Background(), BulkDecisionInput{
		IDs:    []string{"item-1", "item-2"},
		Status: models.StatusApproved,
	})
	require.Error(t, err)

	raw, ok := store.Get(querycache.ListKey("page=1"))
	require.True(t, ok)
	assert.Equal(t, original, raw.([]models.ReviewItem))
	assert.Empty(t, sink.entries)

	// Invalidation still runs regardless of outcome.
	assert.True(t, store.IsStale(querycache.ListKey("page=1")))
}

func TestDecideBulkPartialFailureIsASuccess(t *testing.T) {
	store := querycache.NewStore()
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.Set(querycache.ListKey("page=1"), []models.ReviewItem{
		pendingItem("item-1", created),
		pendingItem("item-2", created),
	})

	api := &fakeAPI{batchResult: &models.BatchDecisionResult{
		UpdatedIDs: []string{"item-1"},
		Failed:     []models.BatchFailure{{ID: "item-2", Reason: "not found"}},
	}}
	sink := &fakeSink{}
	mutator := NewMutator(store, api, sink, nil)

	result, err := mutator.DecideBulk(context.Background(), BulkDecisionInput{
		IDs:    []string{"item-1", "item-2"},
		Status: models.StatusApproved,
	})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "item-2", result.Failed[0].ID)

	// Still one grouped audit entry and full invalidation; refetch
	// settles per-item truth.
	require.Len(t, sink.entries, 1)
	assert.Equal(t, models.AuditActionBulkApprove, sink.entries[0].Action)
	assert.True(t, store.IsStale(querycache.ListKey("page=1")))
}
