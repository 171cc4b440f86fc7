package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/activity"
	"github.com/revuehq/revue-api/internal/audit"
	"github.com/revuehq/revue-api/internal/dto"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/pkg/export"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
)

var auditExportHeaders = []string{"ID", "Timestamp", "User", "Role", "Action", "Target ID", "Risk Level"}

// AuditLogRepository describes the persistence layer required by AuditService.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error)
	ListAll(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// AuditService provides the audit trail use cases: ingesting entries
// from clients, paged and grouped listing, and CSV or PDF export.
type AuditService struct {
	repo      AuditLogRepository
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditService constructs an audit service.
func NewAuditService(repo AuditLogRepository, validate *validator.Validate, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuditService{
		repo:      repo,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create records a single audit entry on behalf of the acting user.
// The risk level is always derived from the action; any value supplied
// by the client is ignored.
func (s *AuditService) Create(ctx context.Context, actor models.UserInfo, req dto.CreateAuditRequest) (*models.AuditEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit payload")
	}

	action := models.AuditAction(req.Action)

	var payload types.JSONText
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit metadata")
		}
		payload = types.JSONText(raw)
	}

	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   actor.ID,
		ActorName: actor.FullName,
		ActorRole: actor.Role,
		Action:    action,
		TargetID:  req.TargetID,
		GroupID:   req.GroupID,
		Metadata:  payload,
		RiskLevel: audit.Classify(action),
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit entry")
	}
	return entry, nil
}

// List returns a page of audit entries with the total count.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, total, nil
}

// ListGrouped returns a page of audit entries with bulk operations
// folded under their parent entry.
func (s *AuditService) ListGrouped(ctx context.Context, filter models.AuditFilter) ([]activity.GroupedEntry, int, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return activity.GroupLogs(entries), total, nil
}

// ExportCSV renders every entry matching the filter as CSV bytes,
// returning the payload and the download filename.
func (s *AuditService) ExportCSV(ctx context.Context, filter models.AuditFilter) ([]byte, string, error) {
	dataset, err := s.exportDataset(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit csv")
	}
	return payload, s.exportFilename("csv"), nil
}

// ExportPDF renders every entry matching the filter as a tabular PDF.
func (s *AuditService) ExportPDF(ctx context.Context, filter models.AuditFilter) ([]byte, string, error) {
	dataset, err := s.exportDataset(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	payload, err := s.pdf.Render(dataset, "Audit Log")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit pdf")
	}
	return payload, s.exportFilename("pdf"), nil
}

func (s *AuditService) exportDataset(ctx context.Context, filter models.AuditFilter) (export.Dataset, error) {
	entries, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit entries for export")
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		targetID := ""
		if entry.TargetID != nil {
			targetID = *entry.TargetID
		}
		rows = append(rows, map[string]string{
			"ID":         entry.ID,
			"Timestamp":  entry.CreatedAt.UTC().Format(time.RFC3339),
			"User":       entry.ActorName,
			"Role":       string(entry.ActorRole),
			"Action":     string(entry.Action),
			"Target ID":  targetID,
			"Risk Level": string(entry.RiskLevel),
		})
	}

	return export.Dataset{Headers: auditExportHeaders, Rows: rows}, nil
}

func (s *AuditService) exportFilename(ext string) string {
	return fmt.Sprintf("audit-log-%s.%s", s.now().Format("2006-01-02"), strings.ToLower(ext))
}
