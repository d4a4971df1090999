package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentSuppression tracks whether the engine currently suppresses a piece
// of content. The content itself lives in the ContentRegistry; this row only
// records the engine's own provisional hide so re-evaluation knows whether
// hide() was already invoked and dismissal knows whether to reverse it.
type ContentSuppression struct {
	ID          uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppID       string      `gorm:"size:50;not null;uniqueIndex:idx_suppression_ref,priority:1" json:"-"`
	ContentType ContentType `gorm:"size:20;not null;uniqueIndex:idx_suppression_ref,priority:2" json:"content_type"`
	ContentID   string      `gorm:"size:255;not null;uniqueIndex:idx_suppression_ref,priority:3" json:"content_id"`
	Hidden      bool        `gorm:"not null;default:false" json:"hidden"`
	Reason      string      `gorm:"size:100" json:"reason,omitempty"`
	HiddenAt    *time.Time  `json:"hidden_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (ContentSuppression) TableName() string {
	return "content_suppressions"
}
