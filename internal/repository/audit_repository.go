package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/revuehq/revue-api/internal/models"
)

const auditColumns = "id, actor_id, actor_name, actor_role, action, target_id, group_id, metadata, risk_level, created_at"

// AuditRepository provides append-only database access for the audit
// trail. Entries are never updated or deleted.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	const query = `INSERT INTO audit_entries (id, actor_id, actor_name, actor_role, action, target_id, group_id, metadata, risk_level, created_at)
		VALUES (:id, :actor_id, :actor_name, :actor_role, :action, :target_id, :group_id, :metadata, :risk_level, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter with total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	baseQuery, args := buildAuditConditions(filter)

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at": true,
		"action":     true,
		"risk_level": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", auditColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	return entries, total, nil
}

// ListAll returns every entry matching the filter without pagination,
// for export rendering.
func (r *AuditRepository) ListAll(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	baseQuery, args := buildAuditConditions(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC", auditColumns, baseQuery)

	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries for export: %w", err)
	}
	return entries, nil
}

func buildAuditConditions(filter models.AuditFilter) (string, []interface{}) {
	baseQuery := `FROM audit_entries WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, *filter.Action)
	}
	if filter.UserRole != nil {
		conditions = append(conditions, fmt.Sprintf("actor_role = $%d", len(args)+1))
		args = append(args, *filter.UserRole)
	}
	if filter.RiskLevel != nil {
		conditions = append(conditions, fmt.Sprintf("risk_level = $%d", len(args)+1))
		args = append(args, *filter.RiskLevel)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(actor_name) LIKE $%d OR LOWER(COALESCE(target_id, '')) LIKE $%d OR LOWER(action) LIKE $%d)", idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	return baseQuery, args
}
