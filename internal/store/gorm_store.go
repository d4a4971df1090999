package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var nonTerminalStatuses = []models.Status{models.StatusPending, models.StatusReviewing}

// GormStore is the Postgres-backed ReportStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// appendAuditTx seals the event onto its hash chain and inserts it inside
// the caller's transaction.
func appendAuditTx(tx *gorm.DB, e *models.AuditEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var prev models.AuditEvent
	q := tx.Where("app_id = ?", e.AppID)
	if e.ReportID != nil {
		q = q.Where("report_id = ?", *e.ReportID)
	} else {
		q = q.Where("report_id IS NULL")
	}
	err := q.Order("created_at DESC").First(&prev).Error
	switch {
	case err == nil:
		e.Seal(prev.Hash)
	case errors.Is(err, gorm.ErrRecordNotFound):
		e.Seal("")
	default:
		return fmt.Errorf("failed to read audit chain head: %w", err)
	}

	if err := tx.Create(e).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (s *GormStore) Create(report *models.Report, audit *models.AuditEvent) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Report{}).
			Scopes(tenant.ForTenant(report.AppID)).
			Where("content_type = ? AND content_id = ? AND reporter_id = ? AND status IN ?",
				report.ContentType, report.ContentID, report.ReporterID, nonTerminalStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateActive
		}
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		return appendAuditTx(tx, audit)
	})
}

func (s *GormStore) GetByID(appID string, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := s.db.Scopes(tenant.ForTenant(appID)).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *GormStore) FindActive(appID string, ref models.ContentRef, reporterID uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := s.db.Scopes(tenant.ForTenant(appID)).
		Where("content_type = ? AND content_id = ? AND reporter_id = ? AND status IN ?",
			ref.Type, ref.ID, reporterID, nonTerminalStatuses).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *GormStore) ActiveByContentRef(appID string, ref models.ContentRef) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.Scopes(tenant.ForTenant(appID)).
		Where("content_type = ? AND content_id = ? AND status IN ?", ref.Type, ref.ID, nonTerminalStatuses).
		Order("reported_at ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *GormStore) IncrementReporterCount(appID string, id uuid.UUID, audit *models.AuditEvent) (*models.Report, error) {
	var report models.Report
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Report{}).
			Scopes(tenant.ForTenant(appID)).
			Where("id = ? AND status IN ?", id, nonTerminalStatuses).
			Update("reporter_count", gorm.Expr("reporter_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return casFailure(tx, appID, id)
		}
		if err := tx.Scopes(tenant.ForTenant(appID)).First(&report, "id = ?", id).Error; err != nil {
			return err
		}
		return appendAuditTx(tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *GormStore) UpdateStatus(appID string, id uuid.UUID, from, to models.Status, fields *TerminalFields, audit *models.AuditEvent) (*models.Report, error) {
	updates := map[string]interface{}{"status": to}
	if fields != nil {
		updates["resolved_at"] = fields.ResolvedAt
		updates["resolved_by"] = fields.ResolvedBy
		updates["action_taken"] = fields.ActionTaken
	}

	var report models.Report
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Report{}).
			Scopes(tenant.ForTenant(appID)).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return casFailure(tx, appID, id)
		}
		if err := tx.Scopes(tenant.ForTenant(appID)).First(&report, "id = ?", id).Error; err != nil {
			return err
		}
		return appendAuditTx(tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// casFailure distinguishes "no such report" from "someone got there first".
func casFailure(tx *gorm.DB, appID string, id uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.Report{}).Scopes(tenant.ForTenant(appID)).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrReportNotFound
	}
	return ErrConcurrentModification
}

func (s *GormStore) List(appID string, f ReportFilter) ([]models.Report, int64, error) {
	var reports []models.Report
	var total int64

	query := s.db.Model(&models.Report{}).Scopes(tenant.ForTenant(appID))
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ReasonCode != "" {
		query = query.Where("reason_code = ?", f.ReasonCode)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("reported_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (s *GormStore) AppendAudit(event *models.AuditEvent) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return appendAuditTx(tx, event)
	})
}

func (s *GormStore) AuditTrail(appID string, reportID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.db.Scopes(tenant.ForTenant(appID)).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GormStore) GetPolicy(appID string) (*models.ModerationPolicy, error) {
	var policy models.ModerationPolicy
	err := s.db.Scopes(tenant.ForTenant(appID)).Order("version DESC").First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultPolicy(appID), nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *GormStore) SavePolicy(p *models.ModerationPolicy, audit *models.AuditEvent) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := gormPolicyTx(tx, p.AppID)
		if err != nil {
			return err
		}
		p.Version = current.Version + 1
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to save policy: %w", err)
		}
		return appendAuditTx(tx, audit)
	})
}

func gormPolicyTx(tx *gorm.DB, appID string) (*models.ModerationPolicy, error) {
	var policy models.ModerationPolicy
	err := tx.Scopes(tenant.ForTenant(appID)).Order("version DESC").First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultPolicy(appID), nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *GormStore) Suppression(appID string, ref models.ContentRef) (*models.ContentSuppression, error) {
	var sup models.ContentSuppression
	err := s.db.Scopes(tenant.ForTenant(appID)).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		First(&sup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ContentSuppression{AppID: appID, ContentType: ref.Type, ContentID: ref.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *GormStore) SetSuppression(appID string, ref models.ContentRef, hidden bool, reason string) error {
	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		var sup models.ContentSuppression
		err := tx.Scopes(tenant.ForTenant(appID)).
			Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
			First(&sup).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sup = models.ContentSuppression{
				ID:          uuid.New(),
				AppID:       appID,
				ContentType: ref.Type,
				ContentID:   ref.ID,
			}
			sup.Hidden = hidden
			sup.Reason = reason
			if hidden {
				sup.HiddenAt = &now
			}
			return tx.Create(&sup).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"hidden": hidden, "reason": reason}
		if hidden {
			updates["hidden_at"] = now
		}
		return tx.Model(&sup).Updates(updates).Error
	})
}

func (s *GormStore) OpenContentRefs(appID string) ([]models.ContentRef, error) {
	var rows []struct {
		ContentType models.ContentType
		ContentID   string
	}
	err := s.db.Model(&models.Report{}).
		Scopes(tenant.ForTenant(appID)).
		Where("status IN ?", nonTerminalStatuses).
		Distinct("content_type", "content_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	refs := make([]models.ContentRef, len(rows))
	for i, r := range rows {
		refs[i] = models.ContentRef{Type: r.ContentType, ID: r.ContentID}
	}
	return refs, nil
}
