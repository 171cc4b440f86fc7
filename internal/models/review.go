package models

import "time"

// ReviewStatus enumerates the moderation states of a generated item.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "PENDING"
	StatusApproved ReviewStatus = "APPROVED"
	StatusRejected ReviewStatus = "REJECTED"
)

// Valid reports whether the status is one of the known states.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ReviewItem represents an AI-generated output awaiting human review.
// ReviewedAt is non-nil exactly when Status is not PENDING.
type ReviewItem struct {
	ID         string       `db:"id" json:"id"`
	Prompt     string       `db:"prompt" json:"prompt"`
	Output     string       `db:"output" json:"output"`
	Model      string       `db:"model" json:"model"`
	Status     ReviewStatus `db:"status" json:"status"`
	Feedback   *string      `db:"feedback" json:"feedback"`
	ReviewedAt *time.Time   `db:"reviewed_at" json:"reviewed_at"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// ReviewItemFilter captures filtering criteria for listing review items.
type ReviewItemFilter struct {
	Status    *ReviewStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// BatchFailure describes one item a batch decision could not update.
type BatchFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchDecisionResult reports the per-item outcome of a bulk decision.
// A non-empty Failed list does not make the whole operation a failure.
type BatchDecisionResult struct {
	UpdatedIDs []string       `json:"updated_ids"`
	Failed     []BatchFailure `json:"failed"`
	Items      []ReviewItem   `json:"items"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
