package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsFiledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_filed_total",
	Help: "Reports filed, by tenant and reason code.",
}, []string{"app_id", "reason"})

var reportsCoalescedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_coalesced_total",
	Help: "Duplicate filings coalesced into an existing report.",
}, []string{"app_id"})

var autoHiddenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_auto_hidden_total",
	Help: "Content auto-hidden by threshold policy.",
}, []string{"app_id"})

var escalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_escalations_total",
	Help: "Reports escalated to reviewing by policy.",
}, []string{"app_id"})

var resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_resolutions_total",
	Help: "Terminal dispositions, by outcome.",
}, []string{"app_id", "outcome"})

var collaboratorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_collaborator_failures_total",
	Help: "Failed calls to external collaborators, by operation.",
}, []string{"operation"})
