package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuehq/revue-api/internal/models"
)

func auditEntry(id string, action models.AuditAction, groupID *string, at time.Time) models.AuditEntry {
	return models.AuditEntry{
		ID:        id,
		ActorID:   "user-1",
		ActorName: "Reviewer One",
		ActorRole: models.RoleReviewer,
		Action:    action,
		GroupID:   groupID,
		RiskLevel: models.RiskLow,
		CreatedAt: at,
	}
}

func strPtr(s string) *string { return &s }

func TestGroupLogsNestsBulkChildren(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	group := strPtr("grp-1")

	logs := []models.AuditEntry{
		auditEntry("solo", models.AuditActionReviewApproved, nil, base.Add(3*time.Minute)),
		auditEntry("child-1", models.AuditActionReviewRejected, group, base.Add(time.Minute)),
		auditEntry("parent", models.AuditActionBulkReject, group, base.Add(2*time.Minute)),
		auditEntry("child-2", models.AuditActionReviewRejected, group, base),
	}

	grouped := GroupLogs(logs)
	require.Len(t, grouped, 2)

	// Sorted by createdAt descending: the solo entry is newest.
	assert.Equal(t, "solo", grouped[0].ID)
	assert.Empty(t, grouped[0].Children)

	assert.Equal(t, "parent", grouped[1].ID)
	require.Len(t, grouped[1].Children, 2)
	assert.Equal(t, "child-1", grouped[1].Children[0].ID)
	assert.Equal(t, "child-2", grouped[1].Children[1].ID)
}

func TestGroupLogsClusterWithoutBulkParentPassesThrough(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	group := strPtr("grp-orphan")

	logs := []models.AuditEntry{
		auditEntry("a", models.AuditActionReviewApproved, group, base.Add(time.Minute)),
		auditEntry("b", models.AuditActionReviewApproved, group, base),
	}

	grouped := GroupLogs(logs)
	require.Len(t, grouped, 2)
	assert.Empty(t, grouped[0].Children)
	assert.Empty(t, grouped[1].Children)
}

func TestGroupLogsIdempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	group := strPtr("grp-1")

	logs := []models.AuditEntry{
		auditEntry("parent", models.AuditActionBulkApprove, group, base.Add(2*time.Minute)),
		auditEntry("child", models.AuditActionReviewApproved, group, base),
		auditEntry("solo", models.AuditActionUserLogin, nil, base.Add(time.Minute)),
	}

	first := GroupLogs(logs)

	// Flatten the grouped result back to a plain entry list and regroup.
	var flattened []models.AuditEntry
	for _, g := range first {
		flattened = append(flattened, g.AuditEntry)
		flattened = append(flattened, g.Children...)
	}
	second := GroupLogs(flattened)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, len(first[i].Children), len(second[i].Children))
	}
}

func TestGroupLogsDoesNotMutateInput(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	group := strPtr("grp-1")
	logs := []models.AuditEntry{
		auditEntry("child", models.AuditActionReviewApproved, group, base),
		auditEntry("parent", models.AuditActionBulkApprove, group, base.Add(time.Minute)),
	}
	snapshot := make([]models.AuditEntry, len(logs))
	copy(snapshot, logs)

	GroupLogs(logs)
	assert.Equal(t, snapshot, logs)
}

func TestGroupLogsEmptyInput(t *testing.T) {
	assert.Empty(t, GroupLogs(nil))
}
