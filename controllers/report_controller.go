package controllers

import (
	"net/http"

	"equipment_loaner/app"
	"equipment_loaner/apperr"
	"equipment_loaner/policy"

	"github.com/gin-gonic/gin"
)

// ReportController serves read-only derived views to staff and admins.
type ReportController struct{ *Srv }

func NewReportController(s *Srv) *ReportController { return &ReportController{Srv: s} }

func requireStaff(c *gin.Context) bool {
	if err := policy.Authorize(app.CurrentActor(c), policy.OpReadAll); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// GET /api/dashboard/stats
func (rc *ReportController) DashboardStats(c *gin.Context) {
	if !requireStaff(c) {
		return
	}
	st, err := rc.Reporter.DashboardStats(c.Request.Context(), rc.Engine.Today())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/reports/overdue
func (rc *ReportController) Overdue(c *gin.Context) {
	if !requireStaff(c) {
		return
	}
	rows, err := rc.Reporter.OverdueLoans(c.Request.Context(), rc.Engine.Today())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, app.H{"total": len(rows), "loans": rows})
}

// GET /api/reports/loans
func (rc *ReportController) Loans(c *gin.Context) {
	if !requireStaff(c) {
		return
	}
	rows, err := rc.Reporter.LoanExport(c.Request.Context(), rc.Engine.Today())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, app.H{"total": len(rows), "loans": rows})
}

// GET /api/reports/maintenance?history=true
func (rc *ReportController) Maintenance(c *gin.Context) {
	if !requireStaff(c) {
		return
	}
	withHistory, err := optionalBool(c, "history")
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := rc.Reporter.MaintenanceItems(c.Request.Context(), withHistory != nil && *withHistory)
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, app.H{"total": len(rows), "items": rows})
}

// GET /api/reports/inventory
func (rc *ReportController) Inventory(c *gin.Context) {
	if !requireStaff(c) {
		return
	}
	rows, err := rc.Reporter.InventoryExport(c.Request.Context())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, app.H{"total": len(rows), "items": rows})
}

// GET /api/reports/integrity
func (rc *ReportController) Integrity(c *gin.Context) {
	if !requireStaff(c) {
		return
	}
	rep, err := rc.Auditor.Audit(c.Request.Context())
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, rep)
}
