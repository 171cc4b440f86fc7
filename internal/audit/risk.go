// Package audit holds the shared risk classification used by both the
// client-side activity logger and the server-side audit writer.
package audit

import "github.com/revuehq/revue-api/internal/models"

var riskByAction = map[models.AuditAction]models.RiskLevel{
	models.AuditActionReviewApproved:  models.RiskLow,
	models.AuditActionReviewRejected:  models.RiskLow,
	models.AuditActionBulkApprove:     models.RiskMedium,
	models.AuditActionBulkReject:      models.RiskHigh,
	models.AuditActionStreamStarted:   models.RiskLow,
	models.AuditActionStreamCancelled: models.RiskMedium,
	models.AuditActionUserLogin:       models.RiskLow,
	models.AuditActionUserLogout:      models.RiskLow,
}

// Classify maps an action to its fixed risk level. Unknown actions
// default to LOW so logging never blocks on a new action value.
func Classify(action models.AuditAction) models.RiskLevel {
	if level, ok := riskByAction[action]; ok {
		return level
	}
	return models.RiskLow
}
