package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction enumerates the closed set of loggable actions.
type AuditAction string

const (
	AuditActionReviewApproved  AuditAction = "REVIEW_APPROVED"
	AuditActionReviewRejected  AuditAction = "REVIEW_REJECTED"
	AuditActionBulkApprove     AuditAction = "BULK_APPROVE"
	AuditActionBulkReject      AuditAction = "BULK_REJECT"
	AuditActionStreamStarted   AuditAction = "STREAM_STARTED"
	AuditActionStreamCancelled AuditAction = "STREAM_CANCELLED"
	AuditActionUserLogin       AuditAction = "USER_LOGIN"
	AuditActionUserLogout      AuditAction = "USER_LOGOUT"
)

// IsBulk reports whether the action denotes a bulk operation.
func (a AuditAction) IsBulk() bool {
	return a == AuditActionBulkApprove || a == AuditActionBulkReject
}

// RiskLevel classifies the severity of an audit action.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// AuditEntry represents an immutable audit trail record. RiskLevel is
// always derived from Action, never supplied by the caller.
type AuditEntry struct {
	ID        string         `db:"id" json:"id"`
	ActorID   string         `db:"actor_id" json:"actor_id"`
	ActorName string         `db:"actor_name" json:"actor_name"`
	ActorRole UserRole       `db:"actor_role" json:"actor_role"`
	Action    AuditAction    `db:"action" json:"action"`
	TargetID  *string        `db:"target_id" json:"target_id,omitempty"`
	GroupID   *string        `db:"group_id" json:"group_id,omitempty"`
	Metadata  types.JSONText `db:"metadata" json:"metadata,omitempty"`
	RiskLevel RiskLevel      `db:"risk_level" json:"risk_level"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter captures filtering criteria for querying the audit log.
type AuditFilter struct {
	Action    *AuditAction
	UserRole  *UserRole
	RiskLevel *RiskLevel
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
