package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/collab"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Suppression reasons. An auto suppression is provisional and reversible;
// a resolved one is the reviewer's final word and is never lifted by the
// engine.
const (
	suppressionAuto     = "auto_threshold"
	suppressionResolved = "resolved"
)

// ActionUserBanned on an account report makes the resolve path ban the
// reported account in the content registry.
const ActionUserBanned = "user_banned"

// ModerationEngine drives the report lifecycle: ingestion with coalescing,
// severity derivation, aggregate threshold evaluation with provisional
// auto-hide, and the bounded review state machine. It is the sole writer of
// reports; all side effects on a content ref run inside a per-ref critical
// section.
type ModerationEngine struct {
	store    store.ReportStore
	registry collab.ContentRegistry
	oracle   collab.ScoringOracle
	sink     collab.NotificationSink
	locks    *keyLock
}

func NewModerationEngine(st store.ReportStore, registry collab.ContentRegistry, oracle collab.ScoringOracle, sink collab.NotificationSink) *ModerationEngine {
	return &ModerationEngine{
		store:    st,
		registry: registry,
		oracle:   oracle,
		sink:     sink,
		locks:    newKeyLock(),
	}
}

func refLockKey(appID string, ref models.ContentRef) string {
	return appID + "/" + ref.Key()
}

func auditDetail(fields map[string]interface{}) datatypes.JSON {
	b, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// FileReport ingests a complaint. A second filing by the same reporter
// against the same content while the first is still open does not create a
// new report; it bumps the reporter count on the existing one. The returned
// bool is true for such a coalesced filing.
func (e *ModerationEngine) FileReport(appID string, reporterID uuid.UUID, req *dto.FileReportRequest) (*models.Report, bool, error) {
	contentType := models.ContentType(req.ContentType)
	if !contentType.Valid() {
		return nil, false, errors.New("invalid content_type: must be post, answer, comment, or account")
	}
	reason := models.ReasonCode(req.ReasonCode)
	if !reason.Valid() {
		return nil, false, errors.New("invalid reason_code")
	}
	if strings.TrimSpace(req.ContentID) == "" {
		return nil, false, errors.New("content_id is required")
	}
	if len(req.Description) > models.MaxDescriptionLen {
		return nil, false, fmt.Errorf("description exceeds %d characters", models.MaxDescriptionLen)
	}

	ref := models.ContentRef{Type: contentType, ID: req.ContentID}
	unlock := e.locks.Lock(refLockKey(appID, ref))
	defer unlock()

	policy, err := e.store.GetPolicy(appID)
	if err != nil {
		return nil, false, err
	}

	existing, err := e.store.FindActive(appID, ref, reporterID)
	switch {
	case err == nil:
		return e.coalesce(appID, reporterID, existing, ref, policy)
	case !errors.Is(err, store.ErrReportNotFound):
		return nil, false, err
	}

	severity := BaseSeverity(reason)
	if e.oracleEnabled(policy, reason) {
		oracleSeverity, oerr := e.oracle.Score(req.Description, reason)
		if oerr != nil {
			collaboratorFailuresTotal.WithLabelValues("score").Inc()
			slog.Error("scoring oracle failed, falling back to base severity",
				"app_id", appID, "reason", reason, "error", oerr)
		} else {
			severity = CombineSeverity(severity, oracleSeverity)
		}
	}

	now := time.Now().UTC()
	report := &models.Report{
		ID:            uuid.New(),
		AppID:         appID,
		ContentType:   contentType,
		ContentID:     req.ContentID,
		ReporterID:    reporterID,
		ReasonCode:    reason,
		Description:   req.Description,
		Severity:      severity,
		Status:        models.StatusPending,
		ReporterCount: 1,
		ReportedAt:    now,
	}
	audit := &models.AuditEvent{
		AppID:       appID,
		ReportID:    &report.ID,
		ActorID:     reporterID.String(),
		Action:      models.AuditFiled,
		AfterStatus: models.StatusPending,
		Detail:      auditDetail(map[string]interface{}{"reason_code": reason, "severity": severity}),
	}
	if err := e.store.Create(report, audit); err != nil {
		return nil, false, err
	}
	reportsFiledTotal.WithLabelValues(appID, string(reason)).Inc()

	if err := e.evaluateAggregate(appID, ref, policy); err != nil {
		return nil, false, err
	}

	fresh, err := e.store.GetByID(appID, report.ID)
	if err != nil {
		return nil, false, err
	}
	return fresh, false, nil
}

func (e *ModerationEngine) coalesce(appID string, reporterID uuid.UUID, existing *models.Report, ref models.ContentRef, policy *models.ModerationPolicy) (*models.Report, bool, error) {
	audit := &models.AuditEvent{
		AppID:        appID,
		ReportID:     &existing.ID,
		ActorID:      reporterID.String(),
		Action:       models.AuditAggregated,
		BeforeStatus: existing.Status,
		AfterStatus:  existing.Status,
		Detail:       auditDetail(map[string]interface{}{"reporter_count": existing.ReporterCount + 1}),
	}
	if _, err := e.store.IncrementReporterCount(appID, existing.ID, audit); err != nil {
		return nil, false, err
	}
	reportsCoalescedTotal.WithLabelValues(appID).Inc()

	if err := e.evaluateAggregate(appID, ref, policy); err != nil {
		return nil, false, err
	}

	fresh, err := e.store.GetByID(appID, existing.ID)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// oracleEnabled consults the policy toggles: spam-shaped reasons sit behind
// the spam detector, everything else behind the toxicity filter.
func (e *ModerationEngine) oracleEnabled(policy *models.ModerationPolicy, reason models.ReasonCode) bool {
	switch reason {
	case models.ReasonSpam, models.ReasonDuplicate, models.ReasonOffTopic, models.ReasonLowQuality:
		return policy.SpamDetectionEnabled
	default:
		return policy.ToxicityFilterEnabled
	}
}

// evaluateAggregate recomputes the combined state of all open reports
// against ref and applies policy. Caller must hold the per-ref lock.
//
// Threshold crossing hides the content (once) and escalates every pending
// report to reviewing; a single report at or above the escalation severity
// escalates without hiding. When neither trigger holds anymore and the
// content is only provisionally hidden, the hide is lifted — auto-hide is
// never a final disposition.
func (e *ModerationEngine) evaluateAggregate(appID string, ref models.ContentRef, policy *models.ModerationPolicy) error {
	reports, err := e.store.ActiveByContentRef(appID, ref)
	if err != nil {
		return err
	}

	totalReporters := 0
	maxSeverity := models.Severity("")
	for i := range reports {
		totalReporters += reports[i].ReporterCount
		maxSeverity = models.MaxSeverity(maxSeverity, reports[i].Severity)
	}
	thresholdMet := totalReporters >= policy.AutoHideThreshold
	severityMet := len(reports) > 0 && maxSeverity.AtLeast(policy.AutoEscalateSeverity)

	sup, err := e.store.Suppression(appID, ref)
	if err != nil {
		return err
	}

	if thresholdMet && !sup.Hidden {
		e.autoHide(appID, ref, totalReporters, maxSeverity)
	}
	if !thresholdMet && !severityMet && sup.Hidden && sup.Reason == suppressionAuto {
		e.autoUnhide(appID, ref)
	}

	if thresholdMet || severityMet {
		for i := range reports {
			if reports[i].Status != models.StatusPending {
				continue
			}
			e.escalate(appID, &reports[i])
		}
	}
	return nil
}

func (e *ModerationEngine) autoHide(appID string, ref models.ContentRef, totalReporters int, maxSeverity models.Severity) {
	if err := e.registry.Hide(appID, ref); err != nil {
		collaboratorFailuresTotal.WithLabelValues("hide").Inc()
		slog.Error("content registry hide failed", "app_id", appID, "content", ref.Key(), "error", err)
		e.appendRemediation(appID, models.AuditHideFailed, ref, err)
		return
	}
	if err := e.store.SetSuppression(appID, ref, true, suppressionAuto); err != nil {
		slog.Error("failed to record suppression", "app_id", appID, "content", ref.Key(), "error", err)
		return
	}
	audit := &models.AuditEvent{
		AppID:   appID,
		ActorID: models.SystemActor,
		Action:  models.AuditAutoHidden,
		Detail: auditDetail(map[string]interface{}{
			"content_type":   ref.Type,
			"content_id":     ref.ID,
			"reporter_count": totalReporters,
			"max_severity":   maxSeverity,
		}),
	}
	if err := e.store.AppendAudit(audit); err != nil {
		slog.Error("failed to append auto_hidden audit event", "app_id", appID, "content", ref.Key(), "error", err)
	}
	autoHiddenTotal.WithLabelValues(appID).Inc()
	e.sink.Emit(collab.Event{
		AppID:       appID,
		Kind:        models.AuditAutoHidden,
		ContentType: ref.Type,
		ContentID:   ref.ID,
		Severity:    maxSeverity,
		Message:     fmt.Sprintf("content auto-hidden after %d reporters", totalReporters),
		At:          time.Now().UTC(),
	})
}

func (e *ModerationEngine) autoUnhide(appID string, ref models.ContentRef) {
	if err := e.registry.Unhide(appID, ref); err != nil {
		collaboratorFailuresTotal.WithLabelValues("unhide").Inc()
		slog.Error("content registry unhide failed", "app_id", appID, "content", ref.Key(), "error", err)
		e.appendRemediation(appID, models.AuditUnhideFailed, ref, err)
		return
	}
	if err := e.store.SetSuppression(appID, ref, false, ""); err != nil {
		slog.Error("failed to clear suppression", "app_id", appID, "content", ref.Key(), "error", err)
		return
	}
	audit := &models.AuditEvent{
		AppID:   appID,
		ActorID: models.SystemActor,
		Action:  models.AuditAutoUnhidden,
		Detail:  auditDetail(map[string]interface{}{"content_type": ref.Type, "content_id": ref.ID}),
	}
	if err := e.store.AppendAudit(audit); err != nil {
		slog.Error("failed to append auto_unhidden audit event", "app_id", appID, "content", ref.Key(), "error", err)
	}
	e.sink.Emit(collab.Event{
		AppID:       appID,
		Kind:        models.AuditAutoUnhidden,
		ContentType: ref.Type,
		ContentID:   ref.ID,
		Message:     "provisional hide lifted",
		At:          time.Now().UTC(),
	})
}

func (e *ModerationEngine) escalate(appID string, report *models.Report) {
	audit := &models.AuditEvent{
		AppID:        appID,
		ReportID:     &report.ID,
		ActorID:      models.SystemActor,
		Action:       models.AuditEscalated,
		BeforeStatus: models.StatusPending,
		AfterStatus:  models.StatusReviewing,
	}
	_, err := e.store.UpdateStatus(appID, report.ID, models.StatusPending, models.StatusReviewing, nil, audit)
	if errors.Is(err, store.ErrConcurrentModification) {
		// someone else already moved it, escalation is idempotent
		return
	}
	if err != nil {
		slog.Error("failed to escalate report", "app_id", appID, "report_id", report.ID, "error", err)
		return
	}
	escalationsTotal.WithLabelValues(appID).Inc()
	e.sink.Emit(collab.Event{
		AppID:       appID,
		Kind:        models.AuditEscalated,
		ReportID:    &report.ID,
		ContentType: report.ContentType,
		ContentID:   report.ContentID,
		Severity:    report.Severity,
		At:          time.Now().UTC(),
	})
}

// appendRemediation records a failed collaborator call as its own audit
// entry so reviewers can see suppression that should have happened but
// did not. The status transition that triggered it still stands.
func (e *ModerationEngine) appendRemediation(appID string, action models.AuditAction, ref models.ContentRef, cause error) {
	audit := &models.AuditEvent{
		AppID:   appID,
		ActorID: models.SystemActor,
		Action:  action,
		Detail: auditDetail(map[string]interface{}{
			"content_type": ref.Type,
			"content_id":   ref.ID,
			"error":        cause.Error(),
		}),
	}
	if err := e.store.AppendAudit(audit); err != nil {
		slog.Error("failed to append remediation audit event", "app_id", appID, "action", action, "error", err)
	}
}

// StartReview moves a pending report into reviewing. Idempotent when the
// report is already under review; terminal reports are refused.
func (e *ModerationEngine) StartReview(appID string, reportID, actorID uuid.UUID) (*models.Report, error) {
	report, err := e.store.GetByID(appID, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == models.StatusReviewing {
		return report, nil
	}
	if report.Terminal() {
		return nil, store.ErrAlreadyTerminal
	}

	audit := &models.AuditEvent{
		AppID:        appID,
		ReportID:     &report.ID,
		ActorID:      actorID.String(),
		Action:       models.AuditReviewStarted,
		BeforeStatus: models.StatusPending,
		AfterStatus:  models.StatusReviewing,
	}
	updated, err := e.store.UpdateStatus(appID, reportID, models.StatusPending, models.StatusReviewing, nil, audit)
	if errors.Is(err, store.ErrConcurrentModification) {
		// lost a race; if auto-escalation got there first this is still
		// an idempotent success
		fresh, ferr := e.store.GetByID(appID, reportID)
		if ferr == nil && fresh.Status == models.StatusReviewing {
			return fresh, nil
		}
		if ferr == nil && fresh.Terminal() {
			return nil, store.ErrAlreadyTerminal
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Resolve closes a report with an authoritative human disposition. The
// transition and its audit event commit even when the downstream hide or
// ban call fails; those failures become remediation audit entries.
func (e *ModerationEngine) Resolve(appID string, reportID, actorID uuid.UUID, actionTaken string) (*models.Report, error) {
	if strings.TrimSpace(actionTaken) == "" {
		return nil, errors.New("action_taken is required")
	}

	report, err := e.store.GetByID(appID, reportID)
	if err != nil {
		return nil, err
	}

	ref := report.ContentRef()
	unlock := e.locks.Lock(refLockKey(appID, ref))
	defer unlock()

	// re-read under the lock: auto-escalation may have moved the status
	report, err = e.store.GetByID(appID, reportID)
	if err != nil {
		return nil, err
	}
	if report.Terminal() {
		return nil, store.ErrAlreadyTerminal
	}

	now := time.Now().UTC()
	fields := &store.TerminalFields{ResolvedAt: now, ResolvedBy: actorID.String(), ActionTaken: actionTaken}
	audit := &models.AuditEvent{
		AppID:        appID,
		ReportID:     &report.ID,
		ActorID:      actorID.String(),
		Action:       models.AuditResolved,
		BeforeStatus: report.Status,
		AfterStatus:  models.StatusResolved,
		Detail:       auditDetail(map[string]interface{}{"action_taken": actionTaken}),
	}
	updated, err := e.store.UpdateStatus(appID, reportID, report.Status, models.StatusResolved, fields, audit)
	if err != nil {
		return nil, err
	}
	resolutionsTotal.WithLabelValues(appID, string(models.StatusResolved)).Inc()

	sup, serr := e.store.Suppression(appID, ref)
	if serr != nil {
		slog.Error("failed to read suppression on resolve", "app_id", appID, "content", ref.Key(), "error", serr)
	} else if !sup.Hidden {
		if herr := e.registry.Hide(appID, ref); herr != nil {
			collaboratorFailuresTotal.WithLabelValues("hide").Inc()
			slog.Error("content registry hide failed on resolve", "app_id", appID, "content", ref.Key(), "error", herr)
			e.appendRemediation(appID, models.AuditHideFailed, ref, herr)
		} else if uerr := e.store.SetSuppression(appID, ref, true, suppressionResolved); uerr != nil {
			slog.Error("failed to record suppression on resolve", "app_id", appID, "content", ref.Key(), "error", uerr)
		}
	} else {
		// the provisional hide becomes final, sibling dismissals must not lift it
		if uerr := e.store.SetSuppression(appID, ref, true, suppressionResolved); uerr != nil {
			slog.Error("failed to finalize suppression on resolve", "app_id", appID, "content", ref.Key(), "error", uerr)
		}
	}

	if report.ContentType == models.ContentTypeAccount && actionTaken == ActionUserBanned {
		if berr := e.registry.BanUser(appID, report.ContentID); berr != nil {
			collaboratorFailuresTotal.WithLabelValues("ban").Inc()
			slog.Error("content registry ban failed", "app_id", appID, "user_id", report.ContentID, "error", berr)
			e.appendRemediation(appID, models.AuditBanFailed, ref, berr)
		}
	}

	e.sink.Emit(collab.Event{
		AppID:       appID,
		Kind:        models.AuditResolved,
		ReportID:    &report.ID,
		ContentType: report.ContentType,
		ContentID:   report.ContentID,
		Severity:    report.Severity,
		Message:     actionTaken,
		At:          now,
	})
	return updated, nil
}

// Dismiss closes a report as unfounded. Auto-hide is provisional, so the
// remaining aggregate is re-evaluated: when it no longer meets any trigger,
// the content comes back.
func (e *ModerationEngine) Dismiss(appID string, reportID, actorID uuid.UUID) (*models.Report, error) {
	report, err := e.store.GetByID(appID, reportID)
	if err != nil {
		return nil, err
	}

	ref := report.ContentRef()
	unlock := e.locks.Lock(refLockKey(appID, ref))
	defer unlock()

	report, err = e.store.GetByID(appID, reportID)
	if err != nil {
		return nil, err
	}
	if report.Terminal() {
		return nil, store.ErrAlreadyTerminal
	}

	now := time.Now().UTC()
	fields := &store.TerminalFields{ResolvedAt: now, ResolvedBy: actorID.String()}
	audit := &models.AuditEvent{
		AppID:        appID,
		ReportID:     &report.ID,
		ActorID:      actorID.String(),
		Action:       models.AuditDismissed,
		BeforeStatus: report.Status,
		AfterStatus:  models.StatusDismissed,
	}
	updated, err := e.store.UpdateStatus(appID, reportID, report.Status, models.StatusDismissed, fields, audit)
	if err != nil {
		return nil, err
	}
	resolutionsTotal.WithLabelValues(appID, string(models.StatusDismissed)).Inc()

	policy, perr := e.store.GetPolicy(appID)
	if perr != nil {
		slog.Error("failed to load policy on dismiss", "app_id", appID, "error", perr)
	} else if err := e.evaluateAggregate(appID, ref, policy); err != nil {
		slog.Error("aggregate re-evaluation failed on dismiss", "app_id", appID, "content", ref.Key(), "error", err)
	}

	e.sink.Emit(collab.Event{
		AppID:       appID,
		Kind:        models.AuditDismissed,
		ReportID:    &report.ID,
		ContentType: report.ContentType,
		ContentID:   report.ContentID,
		At:          now,
	})
	return updated, nil
}

func (e *ModerationEngine) GetReport(appID string, reportID uuid.UUID) (*models.Report, error) {
	return e.store.GetByID(appID, reportID)
}

func (e *ModerationEngine) ListReports(appID string, f store.ReportFilter) ([]models.Report, int64, error) {
	return e.store.List(appID, f)
}

func (e *ModerationEngine) GetAuditTrail(appID string, reportID uuid.UUID) ([]models.AuditEvent, error) {
	if _, err := e.store.GetByID(appID, reportID); err != nil {
		return nil, err
	}
	return e.store.AuditTrail(appID, reportID)
}

// GetAggregate reports the combined open state of one content ref, plus the
// registry's own flag count when it can be reached.
func (e *ModerationEngine) GetAggregate(appID string, ref models.ContentRef) (*dto.ContentAggregateResponse, error) {
	if !ref.Type.Valid() {
		return nil, errors.New("invalid content_type: must be post, answer, comment, or account")
	}
	reports, err := e.store.ActiveByContentRef(appID, ref)
	if err != nil {
		return nil, err
	}
	sup, err := e.store.Suppression(appID, ref)
	if err != nil {
		return nil, err
	}

	resp := &dto.ContentAggregateResponse{
		ContentType: ref.Type,
		ContentID:   ref.ID,
		Hidden:      sup.Hidden,
		Reports:     reports,
	}
	for i := range reports {
		resp.ReporterCount += reports[i].ReporterCount
		resp.MaxSeverity = models.MaxSeverity(resp.MaxSeverity, reports[i].Severity)
	}

	if count, ferr := e.registry.GetFlagCount(appID, ref); ferr != nil {
		collaboratorFailuresTotal.WithLabelValues("flag_count").Inc()
		slog.Error("content registry flag count failed", "app_id", appID, "content", ref.Key(), "error", ferr)
	} else {
		resp.RegistryFlagCount = &count
	}
	return resp, nil
}

func (e *ModerationEngine) GetPolicy(appID string) (*models.ModerationPolicy, error) {
	return e.store.GetPolicy(appID)
}

// SetPolicy validates and versions a new policy, then re-evaluates every
// content ref that still has open reports. Terminal reports are untouched.
func (e *ModerationEngine) SetPolicy(appID string, actorID uuid.UUID, req *dto.PolicyRequest) (*models.ModerationPolicy, error) {
	policy := &models.ModerationPolicy{
		AppID:                 appID,
		AutoHideThreshold:     req.AutoHideThreshold,
		AutoEscalateSeverity:  models.Severity(req.AutoEscalateSeverity),
		SpamDetectionEnabled:  req.SpamDetectionEnabled,
		ToxicityFilterEnabled: req.ToxicityFilterEnabled,
		UpdatedBy:             actorID.String(),
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	audit := &models.AuditEvent{
		AppID:   appID,
		ActorID: actorID.String(),
		Action:  models.AuditPolicyUpdated,
		Detail: auditDetail(map[string]interface{}{
			"auto_hide_threshold":     policy.AutoHideThreshold,
			"auto_escalate_severity":  policy.AutoEscalateSeverity,
			"spam_detection_enabled":  policy.SpamDetectionEnabled,
			"toxicity_filter_enabled": policy.ToxicityFilterEnabled,
		}),
	}
	if err := e.store.SavePolicy(policy, audit); err != nil {
		return nil, err
	}

	refs, err := e.store.OpenContentRefs(appID)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		unlock := e.locks.Lock(refLockKey(appID, ref))
		if err := e.evaluateAggregate(appID, ref, policy); err != nil {
			slog.Error("aggregate re-evaluation failed after policy change",
				"app_id", appID, "content", ref.Key(), "error", err)
		}
		unlock()
	}
	return policy, nil
}
