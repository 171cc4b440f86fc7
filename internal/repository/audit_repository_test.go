package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuehq/revue-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	target := "item-1"
	entry := &models.AuditEntry{
		ID:        "audit-1",
		ActorID:   "user-1",
		ActorName: "Reviewer One",
		ActorRole: models.RoleReviewer,
		Action:    models.AuditActionReviewApproved,
		TargetID:  &target,
		RiskLevel: models.RiskLow,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	now := time.Now().UTC()
	action := models.AuditActionBulkReject
	risk := models.RiskHigh

	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_name", "actor_role", "action", "target_id", "group_id", "metadata", "risk_level", "created_at"}).
		AddRow("audit-1", "user-1", "Reviewer One", models.RoleReviewer, action, nil, "grp-1", []byte(`{"count":2}`), risk, now)

	mock.ExpectQuery("SELECT id, actor_id").
		WithArgs(action, risk, "%reviewer%").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(action, risk, "%reviewer%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.AuditFilter{
		Action:    &action,
		RiskLevel: &risk,
		Search:    "Reviewer",
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.RiskHigh, entries[0].RiskLevel)
}

func TestAuditRepositoryListAllDateBounds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_name", "actor_role", "action", "target_id", "group_id", "metadata", "risk_level", "created_at"}).
		AddRow("audit-1", "user-1", "Reviewer One", models.RoleReviewer, models.AuditActionUserLogin, nil, nil, nil, models.RiskLow, start.Add(time.Hour))

	mock.ExpectQuery("SELECT id, actor_id").
		WithArgs(start, end).
		WillReturnRows(rows)

	entries, err := repo.ListAll(context.Background(), models.AuditFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
