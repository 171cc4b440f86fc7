package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/audit"
	"github.com/revuehq/revue-api/internal/dto"
	"github.com/revuehq/revue-api/internal/models"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
)

// ReviewRepository describes the persistence layer required by ReviewService.
type ReviewRepository interface {
	FindByID(ctx context.Context, id string) (*models.ReviewItem, error)
	List(ctx context.Context, filter models.ReviewItemFilter) ([]models.ReviewItem, int, error)
	UpdateDecision(ctx context.Context, id string, status models.ReviewStatus, feedback *string, now time.Time) (*models.ReviewItem, error)
}

type reviewAuditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

// ReviewService implements the review queue use cases: listing,
// fetching and deciding items, with decision audit trail writes.
type ReviewService struct {
	repo      ReviewRepository
	audits    reviewAuditRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewService constructs a review service.
func NewReviewService(repo ReviewRepository, audits reviewAuditRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{
		repo:      repo,
		audits:    audits,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns review items matching the filter. The boolean indicates
// whether the payload originated from cache.
func (s *ReviewService) List(ctx context.Context, filter models.ReviewItemFilter) ([]models.ReviewItem, int, bool, error) {
	type listPayload struct {
		Items []models.ReviewItem `json:"items"`
		Total int                 `json:"total"`
	}

	cacheKey := makeReviewListCacheKey(filter)
	var cached listPayload
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, 0, false, fmt.Errorf("get review list cache: %w", err)
		} else if hit {
			return cached.Items, cached.Total, true, nil
		}
	}

	start := time.Now()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review items")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("review_list", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, listPayload{Items: items, Total: total}, 0); err != nil {
			s.logger.Warn("cache review list", zap.Error(err))
		}
	}
	return items, total, false, nil
}

// Get returns a single review item by ID.
func (s *ReviewService) Get(ctx context.Context, id string) (*models.ReviewItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review item")
	}
	return item, nil
}

// Decide applies an approve or reject decision to a single item and
// records the matching audit entry.
func (s *ReviewService) Decide(ctx context.Context, actor models.UserInfo, id string, req dto.DecisionRequest) (*models.ReviewItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if req.Status != models.StatusApproved && req.Status != models.StatusRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "decision status must be APPROVED or REJECTED")
	}

	item, err := s.repo.UpdateDecision(ctx, id, req.Status, req.Feedback, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}

	metadata := map[string]interface{}{"model": item.Model}
	if req.Feedback != nil {
		metadata["feedback"] = *req.Feedback
	}
	s.recordDecisionAudit(ctx, actor, decisionAuditAction(req.Status), &item.ID, nil, metadata)

	s.invalidateReviewCaches(ctx)
	return item, nil
}

// DecideBulk applies the same decision to every requested item. Items
// that cannot be updated are reported individually; a non-empty failure
// list does not fail the whole call. Exactly one audit entry is written
// for a plural request, carrying a shared group ID.
func (s *ReviewService) DecideBulk(ctx context.Context, actor models.UserInfo, req dto.BulkDecisionRequest) (*models.BatchDecisionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk decision payload")
	}
	if req.Status != models.StatusApproved && req.Status != models.StatusRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "decision status must be APPROVED or REJECTED")
	}

	result := &models.BatchDecisionResult{}
	now := s.now()
	for _, id := range req.IDs {
		item, err := s.repo.UpdateDecision(ctx, id, req.Status, req.Feedback, now)
		if err != nil {
			reason := "update failed"
			if errors.Is(err, sql.ErrNoRows) {
				reason = "not found"
			}
			result.Failed = append(result.Failed, models.BatchFailure{ID: id, Reason: reason})
			continue
		}
		result.UpdatedIDs = append(result.UpdatedIDs, item.ID)
		result.Items = append(result.Items, *item)
	}

	if len(result.UpdatedIDs) == 1 {
		metadata := map[string]interface{}{}
		if req.Feedback != nil {
			metadata["feedback"] = *req.Feedback
		}
		s.recordDecisionAudit(ctx, actor, decisionAuditAction(req.Status), &result.UpdatedIDs[0], nil, metadata)
	} else if len(result.UpdatedIDs) > 1 {
		groupID := uuid.NewString()
		metadata := map[string]interface{}{
			"count": len(result.UpdatedIDs),
			"ids":   result.UpdatedIDs,
		}
		if req.Feedback != nil {
			metadata["feedback"] = *req.Feedback
		}
		s.recordDecisionAudit(ctx, actor, bulkAuditAction(req.Status), &result.UpdatedIDs[0], &groupID, metadata)
	}

	s.invalidateReviewCaches(ctx)
	return result, nil
}

func (s *ReviewService) recordDecisionAudit(ctx context.Context, actor models.UserInfo, action models.AuditAction, targetID, groupID *string, metadata map[string]interface{}) {
	if s.audits == nil {
		return
	}

	var payload types.JSONText
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn("failed to encode audit metadata", zap.Error(err))
		} else {
			payload = types.JSONText(raw)
		}
	}

	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   actor.ID,
		ActorName: actor.FullName,
		ActorRole: actor.Role,
		Action:    action,
		TargetID:  targetID,
		GroupID:   groupID,
		Metadata:  payload,
		RiskLevel: audit.Classify(action),
		CreatedAt: s.now(),
	}

	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record decision audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (s *ReviewService) invalidateReviewCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"reviews:*", "metrics:*"} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("invalidate review caches", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func decisionAuditAction(status models.ReviewStatus) models.AuditAction {
	if status == models.StatusApproved {
		return models.AuditActionReviewApproved
	}
	return models.AuditActionReviewRejected
}

func bulkAuditAction(status models.ReviewStatus) models.AuditAction {
	if status == models.StatusApproved {
		return models.AuditActionBulkApprove
	}
	return models.AuditActionBulkReject
}

func makeReviewListCacheKey(filter models.ReviewItemFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	parts := []string{
		"reviews", "list",
		status,
		filter.Search,
		fmt.Sprintf("%d", filter.Page),
		fmt.Sprintf("%d", filter.PageSize),
		filter.SortBy,
		filter.SortOrder,
	}
	return strings.Join(parts, ":")
}
