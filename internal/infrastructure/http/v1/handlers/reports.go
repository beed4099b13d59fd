package handlers

import (
	"github.com/gin-gonic/gin"

	"pharmaledger/internal/domain/alerts"
	"pharmaledger/internal/domain/reports"
)

// ReportsHandler serves the dashboard and stock alerts.
type ReportsHandler struct {
	*BaseHandler
	reports *reports.Service
	alerts  *alerts.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, reportService *reports.Service, alertService *alerts.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, reports: reportService, alerts: alertService}
}

// Dashboard handles GET /inventory/dashboard
func (h *ReportsHandler) Dashboard(c *gin.Context) {
	d, err := h.reports.Dashboard(c.Request.Context(), h.TenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// AlertsResponse lists triggered alerts and the rules that were evaluated.
type AlertsResponse struct {
	Alerts []alerts.Alert `json:"alerts"`
	Total  int            `json:"total"`
	Rules  []alerts.Rule  `json:"rules"`
}

// Alerts handles GET /inventory/alerts
func (h *ReportsHandler) Alerts(c *gin.Context) {
	found, err := h.alerts.Evaluate(c.Request.Context(), h.TenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	if found == nil {
		found = []alerts.Alert{}
	}
	h.OK(c, AlertsResponse{Alerts: found, Total: len(found), Rules: h.alerts.Rules()})
}
