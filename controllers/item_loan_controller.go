// controllers/item_loan_controller.go
package controllers

import (
	"net/http"
	"strings"
	"time"

	"equipment_loaner/app"
	"equipment_loaner/db"
	"equipment_loaner/loans"
	"equipment_loaner/models"

	"github.com/gin-gonic/gin"
)

type ItemController struct{ *Srv }

func NewItemController(s *Srv) *ItemController { return &ItemController{Srv: s} }

// 日期字段以字符串接收，覆盖嵌入结构体里的同名字段
type itemBody struct {
	loans.ItemInput
	PurchaseDate   *string `json:"purchaseDate"`
	WarrantyExpiry *string `json:"warrantyExpiry"`
}

type itemPatchBody struct {
	loans.ItemPatch
	PurchaseDate   *string `json:"purchaseDate"`
	WarrantyExpiry *string `json:"warrantyExpiry"`
}

func itemDates(purchase, warranty *string) (*time.Time, *time.Time, error) {
	pd, err := parseOptionalDay("purchaseDate", purchase)
	if err != nil {
		return nil, nil, err
	}
	wd, err := parseOptionalDay("warrantyExpiry", warranty)
	if err != nil {
		return nil, nil, err
	}
	return pd, wd, nil
}

func itemFilter(c *gin.Context) (db.ItemFilter, error) {
	page, size := pageParams(c)
	f := db.ItemFilter{
		Status: models.ItemStatus(c.Query("status")),
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Page:   page,
		Size:   size,
	}
	var err error
	if f.CategoryID, err = optionalUint(c, "categoryId"); err != nil {
		return f, err
	}
	if f.LocationID, err = optionalUint(c, "locationId"); err != nil {
		return f, err
	}
	return f, nil
}

// GET /api/items?status=&type=&search=&categoryId=&locationId=&withLoans=
func (ic *ItemController) ListItems(c *gin.Context) {
	f, err := itemFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	actor := app.CurrentActor(c)

	// 管理视图附带当前借用人
	if c.Query("withLoans") == "true" {
		page, err := ic.Engine.ListItemsWithLoans(c.Request.Context(), actor, f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}
	page, err := ic.Engine.ListItems(c.Request.Context(), actor, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/items/:id
func (ic *ItemController) GetItem(c *gin.Context) {
	it, err := ic.Engine.GetItem(c.Request.Context(), app.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// POST /api/items
func (ic *ItemController) CreateItem(c *gin.Context) {
	var body itemBody
	if !bindJSON(c, &body) {
		return
	}
	in := body.ItemInput
	var err error
	if in.PurchaseDate, in.WarrantyExpiry, err = itemDates(body.PurchaseDate, body.WarrantyExpiry); err != nil {
		respondError(c, err)
		return
	}
	it, err := ic.Engine.CreateItem(c.Request.Context(), app.CurrentActor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// PUT /api/items/:id
func (ic *ItemController) UpdateItem(c *gin.Context) {
	var body itemPatchBody
	if !bindJSON(c, &body) {
		return
	}
	p := body.ItemPatch
	var err error
	if p.PurchaseDate, p.WarrantyExpiry, err = itemDates(body.PurchaseDate, body.WarrantyExpiry); err != nil {
		respondError(c, err)
		return
	}
	it, err := ic.Engine.UpdateItem(c.Request.Context(), app.CurrentActor(c), c.Param("id"), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// DELETE /api/items/:id
// 有借用历史的物品只会被标记为 retired
func (ic *ItemController) DeleteItem(c *gin.Context) {
	retired, err := ic.Engine.DeleteItem(c.Request.Context(), app.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "retired": retired})
}

// POST /api/items/:id/maintenance
func (ic *ItemController) MarkMaintenance(c *gin.Context) {
	var in loans.MaintenanceInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	it, err := ic.Engine.MarkMaintenance(c.Request.Context(), app.CurrentActor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// POST /api/items/:id/available
func (ic *ItemController) MarkAvailable(c *gin.Context) {
	var in loans.MaintenanceInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	it, err := ic.Engine.MarkAvailable(c.Request.Context(), app.CurrentActor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// GET /api/items/:id/maintenance-logs
func (ic *ItemController) MaintenanceLogs(c *gin.Context) {
	logs, err := ic.Engine.MaintenanceHistory(c.Request.Context(), app.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"logs": logs})
}

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

type loanRequestBody struct {
	ItemID         string `json:"itemId" binding:"required"`
	ExpectedReturn string `json:"expectedReturn" binding:"required"`
	Reason         string `json:"reason"`
}

type staffLoanBody struct {
	ItemID         string `json:"itemId" binding:"required"`
	BorrowerID     string `json:"borrowerId"`
	BorrowerEmail  string `json:"borrowerEmail"`
	ExpectedReturn string `json:"expectedReturn" binding:"required"`
	Reason         string `json:"reason"`
	AutoApprove    bool   `json:"autoApprove"`
}

type denyBody struct {
	Reason string `json:"reason"`
}

// GET /api/loans?status=&itemId=&borrowerId=&search=
// 普通借用人只能看到自己的记录
func (lc *LoanController) ListLoans(c *gin.Context) {
	page, size := pageParams(c)
	f := db.LoanFilter{
		BorrowerID: c.Query("borrowerId"),
		ItemID:     c.Query("itemId"),
		Status:     models.LoanStatus(c.Query("status")),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       page,
		Size:       size,
	}
	res, err := lc.Engine.ListLoans(c.Request.Context(), app.CurrentActor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/loans/:id
func (lc *LoanController) GetLoan(c *gin.Context) {
	l, err := lc.Engine.GetLoan(c.Request.Context(), app.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// POST /api/loans
func (lc *LoanController) RequestLoan(c *gin.Context) {
	var body loanRequestBody
	if !bindJSON(c, &body) {
		return
	}
	expected, err := parseDay("expectedReturn", body.ExpectedReturn)
	if err != nil {
		respondError(c, err)
		return
	}
	l, err := lc.Engine.RequestLoan(c.Request.Context(), app.CurrentActor(c), loans.RequestLoanInput{
		ItemID:         body.ItemID,
		ExpectedReturn: expected,
		Reason:         body.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// POST /api/loans/staff-create
func (lc *LoanController) StaffCreateLoan(c *gin.Context) {
	var body staffLoanBody
	if !bindJSON(c, &body) {
		return
	}
	expected, err := parseDay("expectedReturn", body.ExpectedReturn)
	if err != nil {
		respondError(c, err)
		return
	}
	l, err := lc.Engine.StaffCreateLoan(c.Request.Context(), app.CurrentActor(c), loans.StaffCreateLoanInput{
		ItemID:         body.ItemID,
		BorrowerID:     body.BorrowerID,
		BorrowerEmail:  body.BorrowerEmail,
		ExpectedReturn: expected,
		Reason:         body.Reason,
		AutoApprove:    body.AutoApprove,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// POST /api/loans/:id/approve
func (lc *LoanController) Approve(c *gin.Context) {
	l, err := lc.Engine.ApproveLoan(c.Request.Context(), app.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// POST /api/loans/:id/deny
func (lc *LoanController) Deny(c *gin.Context) {
	var body denyBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	l, err := lc.Engine.DenyLoan(c.Request.Context(), app.CurrentActor(c), c.Param("id"), body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// POST /api/loans/:id/return
func (lc *LoanController) Return(c *gin.Context) {
	var in loans.ReturnInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	l, err := lc.Engine.ReturnItem(c.Request.Context(), app.CurrentActor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
