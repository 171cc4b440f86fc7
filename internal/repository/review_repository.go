package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/revuehq/revue-api/internal/models"
)

const reviewItemColumns = "id, prompt, output, model, status, feedback, reviewed_at, created_at, updated_at"

// ReviewRepository provides database access for review items.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new instance of ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// FindByID returns a review item by identifier.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.ReviewItem, error) {
	query := fmt.Sprintf("SELECT %s FROM review_items WHERE id = $1 LIMIT 1", reviewItemColumns)
	var item models.ReviewItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review item by id: %w", err)
	}
	return &item, nil
}

// List returns review items based on filters with total count.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewItemFilter) ([]models.ReviewItem, int, error) {
	baseQuery := `FROM review_items WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(prompt) LIKE $%d OR LOWER(output) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at":  true,
		"updated_at":  true,
		"reviewed_at": true,
		"status":      true,
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
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", reviewItemColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var items []models.ReviewItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list review items: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count review items: %w", err)
	}

	return items, total, nil
}

// UpdateDecision transitions one item's status and returns the updated
// row. ReviewedAt is set when the status leaves PENDING and cleared
// when it returns to it.
func (r *ReviewRepository) UpdateDecision(ctx context.Context, id string, status models.ReviewStatus, feedback *string, now time.Time) (*models.ReviewItem, error) {
	var reviewedAt *time.Time
	if status != models.StatusPending {
		reviewedAt = &now
	}

	query := fmt.Sprintf(`UPDATE review_items SET status = $2, feedback = $3, reviewed_at = $4, updated_at = $5 WHERE id = $1 RETURNING %s`, reviewItemColumns)
	var item models.ReviewItem
	if err := r.db.GetContext(ctx, &item, query, id, status, feedback, reviewedAt, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update review decision: %w", err)
	}
	return &item, nil
}

// ListSince returns items created or reviewed at or after the cutoff.
// A nil cutoff returns every item.
func (r *ReviewRepository) ListSince(ctx context.Context, cutoff *time.Time) ([]models.ReviewItem, error) {
	query := fmt.Sprintf("SELECT %s FROM review_items", reviewItemColumns)
	var args []interface{}
	if cutoff != nil {
		query += " WHERE created_at >= $1 OR (reviewed_at IS NOT NULL AND reviewed_at >= $1)"
		args = append(args, *cutoff)
	}
	query += " ORDER BY created_at ASC"

	var items []models.ReviewItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list review items since cutoff: %w", err)
	}
	return items, nil
}
