package dto

import "github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"

type FileReportRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	ReasonCode  string `json:"reason_code"`
	Description string `json:"description"`
}

type FileReportResponse struct {
	Coalesced bool           `json:"coalesced"`
	Report    *models.Report `json:"report"`
}

type ResolveRequest struct {
	ActionTaken string `json:"action_taken"`
}

type PolicyRequest struct {
	AutoHideThreshold     int    `json:"auto_hide_threshold"`
	AutoEscalateSeverity  string `json:"auto_escalate_severity"`
	SpamDetectionEnabled  bool   `json:"spam_detection_enabled"`
	ToxicityFilterEnabled bool   `json:"toxicity_filter_enabled"`
}

type ContentAggregateResponse struct {
	ContentType       models.ContentType `json:"content_type"`
	ContentID         string             `json:"content_id"`
	ReporterCount     int                `json:"reporter_count"`
	MaxSeverity       models.Severity    `json:"max_severity,omitempty"`
	Hidden            bool               `json:"hidden"`
	RegistryFlagCount *int               `json:"registry_flag_count,omitempty"`
	Reports           []models.Report    `json:"reports"`
}
