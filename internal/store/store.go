package store

import (
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrReportNotFound = errors.New("report not found")
	// ErrDuplicateActive guards direct creation bypassing the coalescing
	// path; normal API use never reaches it.
	ErrDuplicateActive        = errors.New("active report already exists for this reporter and content")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAlreadyTerminal        = errors.New("report is already in a terminal state")
	ErrConcurrentModification = errors.New("report was modified concurrently, re-fetch and retry")
)

// ReportFilter narrows List results. Zero values mean "any".
type ReportFilter struct {
	Status     models.Status
	ReasonCode models.ReasonCode
	Severity   models.Severity
	Limit      int
	Offset     int
}

// TerminalFields carries the write-once fields set on transition into a
// terminal status.
type TerminalFields struct {
	ResolvedAt  time.Time
	ResolvedBy  string
	ActionTaken string
}

// ReportStore is the persistence boundary of the moderation engine. The
// engine is the sole writer; every status change is a compare-and-swap on
// the expected current status, and its audit event is written in the same
// transaction — if the audit append fails, the transition rolls back.
type ReportStore interface {
	// Create persists a new report together with its "filed" audit event.
	// Fails with ErrDuplicateActive if a non-terminal report by the same
	// reporter for the same content ref already exists.
	Create(report *models.Report, audit *models.AuditEvent) error

	GetByID(appID string, id uuid.UUID) (*models.Report, error)

	// FindActive returns the non-terminal report filed by reporterID against
	// ref, or ErrReportNotFound.
	FindActive(appID string, ref models.ContentRef, reporterID uuid.UUID) (*models.Report, error)

	// ActiveByContentRef returns a consistent snapshot of all non-terminal
	// reports against ref.
	ActiveByContentRef(appID string, ref models.ContentRef) ([]models.Report, error)

	// IncrementReporterCount coalesces a duplicate filing into the existing
	// report, appending the given "aggregated" audit event atomically. Fails
	// with ErrConcurrentModification if the report went terminal in between.
	IncrementReporterCount(appID string, id uuid.UUID, audit *models.AuditEvent) (*models.Report, error)

	// UpdateStatus performs an atomic compare-and-swap from the expected
	// status, applies terminal fields when given, and appends the audit
	// event in the same transaction. A stale expected status yields
	// ErrConcurrentModification.
	UpdateStatus(appID string, id uuid.UUID, from, to models.Status, fields *TerminalFields, audit *models.AuditEvent) (*models.Report, error)

	List(appID string, f ReportFilter) ([]models.Report, int64, error)

	// AppendAudit records a standalone event (auto-hide, remediation,
	// policy change). Never fails silently.
	AppendAudit(event *models.AuditEvent) error

	AuditTrail(appID string, reportID uuid.UUID) ([]models.AuditEvent, error)

	// GetPolicy returns the highest-version policy for the tenant, or the
	// default policy if none was ever set.
	GetPolicy(appID string) (*models.ModerationPolicy, error)

	// SavePolicy assigns the next version and appends the policy audit event
	// in one transaction.
	SavePolicy(p *models.ModerationPolicy, audit *models.AuditEvent) error

	Suppression(appID string, ref models.ContentRef) (*models.ContentSuppression, error)
	SetSuppression(appID string, ref models.ContentRef, hidden bool, reason string) error

	// OpenContentRefs lists every content ref that still has non-terminal
	// reports, for re-evaluation after a policy change.
	OpenContentRefs(appID string) ([]models.ContentRef, error)
}
