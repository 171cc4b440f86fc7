package dto

import "github.com/revuehq/revue-api/internal/models"

// DecisionRequest defines the payload for a single review decision.
type DecisionRequest struct {
	Status   models.ReviewStatus `json:"status" validate:"required"`
	Feedback *string             `json:"feedback"`
}

// BulkDecisionRequest defines the payload for a bulk review decision.
type BulkDecisionRequest struct {
	IDs      []string            `json:"ids" validate:"required,min=1,dive,required"`
	Status   models.ReviewStatus `json:"status" validate:"required"`
	Feedback *string             `json:"feedback"`
}
