package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModerationPolicy holds the per-app auto-moderation thresholds. Policies are
// versioned append-only: every change inserts a new row, and the highest
// version wins. Reports already in a terminal state are unaffected by later
// policy changes.
type ModerationPolicy struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppID                 string    `gorm:"size:50;not null;uniqueIndex:idx_policy_app_version,priority:1" json:"-"`
	Version               int       `gorm:"not null;uniqueIndex:idx_policy_app_version,priority:2" json:"version"`
	AutoHideThreshold     int       `gorm:"not null" json:"auto_hide_threshold"`
	AutoEscalateSeverity  Severity  `gorm:"size:10;not null" json:"auto_escalate_severity"`
	SpamDetectionEnabled  bool      `gorm:"not null;default:true" json:"spam_detection_enabled"`
	ToxicityFilterEnabled bool      `gorm:"not null;default:true" json:"toxicity_filter_enabled"`
	UpdatedBy             string    `gorm:"size:64" json:"updated_by,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

func (ModerationPolicy) TableName() string {
	return "moderation_policies"
}

func (p *ModerationPolicy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

var (
	ErrThresholdTooLow = errors.New("auto_hide_threshold must be at least 1")
	ErrBadSeverity     = errors.New("auto_escalate_severity must be one of low, medium, high, critical")
)

func (p *ModerationPolicy) Validate() error {
	if p.AutoHideThreshold < 1 {
		return ErrThresholdTooLow
	}
	if !p.AutoEscalateSeverity.Valid() {
		return ErrBadSeverity
	}
	return nil
}

// DefaultPolicy is what a tenant gets before an admin ever touches the knobs.
func DefaultPolicy(appID string) *ModerationPolicy {
	return &ModerationPolicy{
		AppID:                 appID,
		Version:               0,
		AutoHideThreshold:     3,
		AutoEscalateSeverity:  SeverityCritical,
		SpamDetectionEnabled:  true,
		ToxicityFilterEnabled: true,
	}
}
