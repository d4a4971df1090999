// Package collab holds the engine's external collaborators: the content
// registry that owns the moderated content, the scoring oracle that
// estimates severity, and the notification sink that fans out engine
// events. The engine only sees the interfaces.
package collab

import (
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/google/uuid"
)

// ErrUnavailable wraps any collaborator call failure. The engine records it
// and moves on; it never blocks a status transition.
var ErrUnavailable = errors.New("collaborator unavailable")

// ContentRegistry owns the underlying posts/answers/comments/accounts.
// Hide, Unhide and BanUser are idempotency-sensitive and are never retried
// automatically.
type ContentRegistry interface {
	Hide(appID string, ref models.ContentRef) error
	Unhide(appID string, ref models.ContentRef) error
	BanUser(appID string, userID string) error
	GetFlagCount(appID string, ref models.ContentRef) (int, error)
}

// ScoringOracle estimates the severity of a report's text and category.
type ScoringOracle interface {
	Score(text string, reason models.ReasonCode) (models.Severity, error)
}

// Event is what the engine emits toward downstream delivery.
type Event struct {
	AppID       string             `json:"app_id"`
	Kind        models.AuditAction `json:"kind"`
	ReportID    *uuid.UUID         `json:"report_id,omitempty"`
	ContentType models.ContentType `json:"content_type,omitempty"`
	ContentID   string             `json:"content_id,omitempty"`
	Severity    models.Severity    `json:"severity,omitempty"`
	Message     string             `json:"message,omitempty"`
	At          time.Time          `json:"at"`
}

// NotificationSink receives engine events. Delivery is someone else's
// problem; the engine treats Emit as fire-and-forget.
type NotificationSink interface {
	Emit(event Event)
}

// NoopSink drops every event. Used when no webhook is configured.
type NoopSink struct{}

func (NoopSink) Emit(Event) {}
