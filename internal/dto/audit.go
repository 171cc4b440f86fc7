package dto

// CreateAuditRequest defines the payload for recording an audit entry.
// Risk level is always derived server-side from the action.
type CreateAuditRequest struct {
	Action   string                 `json:"action" validate:"required"`
	TargetID *string                `json:"target_id"`
	GroupID  *string                `json:"group_id"`
	Metadata map[string]interface{} `json:"metadata"`
}
