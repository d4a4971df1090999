package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType identifies what kind of subject a report points at.
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeAnswer  ContentType = "answer"
	ContentTypeComment ContentType = "comment"
	ContentTypeAccount ContentType = "account"
)

var validContentTypes = map[ContentType]bool{
	ContentTypePost:    true,
	ContentTypeAnswer:  true,
	ContentTypeComment: true,
	ContentTypeAccount: true,
}

func (t ContentType) Valid() bool {
	return validContentTypes[t]
}

// ContentRef is the stable identifier of a moderated subject within a tenant.
type ContentRef struct {
	Type ContentType
	ID   string
}

func (r ContentRef) Key() string {
	return string(r.Type) + "/" + r.ID
}

// ReasonCode is the reporter-supplied complaint category.
type ReasonCode string

const (
	ReasonSpam           ReasonCode = "spam"
	ReasonHarassment     ReasonCode = "harassment"
	ReasonMisinformation ReasonCode = "misinformation"
	ReasonInappropriate  ReasonCode = "inappropriate"
	ReasonHateSpeech     ReasonCode = "hate_speech"
	ReasonDuplicate      ReasonCode = "duplicate"
	ReasonOffTopic       ReasonCode = "off_topic"
	ReasonLowQuality     ReasonCode = "low_quality"
	ReasonOther          ReasonCode = "other"
)

var validReasonCodes = map[ReasonCode]bool{
	ReasonSpam:           true,
	ReasonHarassment:     true,
	ReasonMisinformation: true,
	ReasonInappropriate:  true,
	ReasonHateSpeech:     true,
	ReasonDuplicate:      true,
	ReasonOffTopic:       true,
	ReasonLowQuality:     true,
	ReasonOther:          true,
}

func (r ReasonCode) Valid() bool {
	return validReasonCodes[r]
}

// Severity is derived at filing time and only changes by recomputation,
// never by reviewer edit.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Valid() bool {
	return severityRank[s] != 0
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Status is the report state machine field.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// MaxDescriptionLen bounds the free-text description on a report.
const MaxDescriptionLen = 2000

// Report is a user complaint against a piece of content or an account.
// Reports are never deleted; they reach a terminal status and are retained
// for audit and compliance.
type Report struct {
	ID            uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppID         string      `gorm:"size:50;not null;index:idx_reports_app_content" json:"-"`
	ContentType   ContentType `gorm:"size:20;not null;index:idx_reports_app_content" json:"content_type"`
	ContentID     string      `gorm:"size:255;not null;index:idx_reports_app_content" json:"content_id"`
	ReporterID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"reporter_id"`
	ReasonCode    ReasonCode  `gorm:"size:30;not null" json:"reason_code"`
	Description   string      `gorm:"size:2000" json:"description,omitempty"`
	Severity      Severity    `gorm:"size:10;not null" json:"severity"`
	Status        Status      `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReporterCount int         `gorm:"not null;default:1" json:"reporter_count"`
	ReportedAt    time.Time   `gorm:"not null" json:"reported_at"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy    *string     `gorm:"size:64" json:"resolved_by,omitempty"`
	ActionTaken   string      `gorm:"size:255" json:"action_taken,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}

func (r *Report) ContentRef() ContentRef {
	return ContentRef{Type: r.ContentType, ID: r.ContentID}
}

func (r *Report) Terminal() bool {
	return r.Status.Terminal()
}
