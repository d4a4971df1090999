package models

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"gorm.io/datatypes"
)

// AuditAction enumerates everything the engine records about a report's life.
type AuditAction string

const (
	AuditFiled         AuditAction = "filed"
	AuditAggregated    AuditAction = "aggregated"
	AuditAutoHidden    AuditAction = "auto_hidden"
	AuditAutoUnhidden  AuditAction = "auto_unhidden"
	AuditReviewStarted AuditAction = "review_started"
	AuditResolved      AuditAction = "resolved"
	AuditDismissed     AuditAction = "dismissed"
	AuditEscalated     AuditAction = "escalated"
	AuditHideFailed    AuditAction = "hide_failed"
	AuditUnhideFailed  AuditAction = "unhide_failed"
	AuditBanFailed     AuditAction = "ban_failed"
	AuditPolicyUpdated AuditAction = "policy_updated"
)

// SystemActor is recorded when the engine acts on its own (auto-hide,
// escalation, remediation entries).
const SystemActor = "system"

// AuditEvent is the append-only system of record for compliance. Rows are
// hash-chained per report (per tenant for policy events) so tampering is
// detectable; they are never updated or deleted.
type AuditEvent struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppID        string         `gorm:"size:50;not null;index" json:"-"`
	ReportID     *uuid.UUID     `gorm:"type:uuid;index" json:"report_id,omitempty"`
	ActorID      string         `gorm:"size:64;not null" json:"actor_id"`
	Action       AuditAction    `gorm:"size:30;not null" json:"action"`
	BeforeStatus Status         `gorm:"size:20" json:"before_status,omitempty"`
	AfterStatus  Status         `gorm:"size:20" json:"after_status,omitempty"`
	Detail       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"detail,omitempty"`
	PrevHash     string         `gorm:"size:64" json:"prev_hash"`
	Hash         string         `gorm:"size:64" json:"hash"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

// ChainKey groups events into one hash chain: per report when the event
// belongs to one, per tenant otherwise (policy changes).
func (e *AuditEvent) ChainKey() string {
	if e.ReportID != nil {
		return "report/" + e.ReportID.String()
	}
	return "app/" + e.AppID
}

// ComputeHash seals the event against prev, the hash of the previous event
// in the same chain (empty for the first link).
func (e *AuditEvent) ComputeHash(prev string) string {
	reportID := ""
	if e.ReportID != nil {
		reportID = e.ReportID.String()
	}
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d",
		prev, e.AppID, reportID, e.ActorID, e.Action,
		e.BeforeStatus, e.AfterStatus, e.CreatedAt.UnixNano())
	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Seal sets PrevHash and Hash from the previous link.
func (e *AuditEvent) Seal(prev string) {
	e.PrevHash = prev
	e.Hash = e.ComputeHash(prev)
}

// VerifyChain walks events (oldest first) and checks every link.
func VerifyChain(events []AuditEvent) bool {
	prev := ""
	for i := range events {
		e := &events[i]
		if e.PrevHash != prev || e.ComputeHash(prev) != e.Hash {
			return false
		}
		prev = e.Hash
	}
	return true
}
