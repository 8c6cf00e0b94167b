package reports

import (
	"context"
	"time"

	"equipment_loaner/models"

	"github.com/doug-martin/goqu/v9"
)

type LoanExportRow struct {
	LoanID          string     `db:"loan_id" json:"loanId"`
	Status          string     `db:"status" json:"status"`
	AssetTag        string     `db:"asset_tag" json:"assetTag"`
	ItemType        string     `db:"item_type" json:"itemType"`
	BorrowerName    string     `db:"borrower_name" json:"borrowerName"`
	BorrowerEmail   string     `db:"borrower_email" json:"borrowerEmail"`
	ApprovedByName  *string    `db:"approved_by_name" json:"approvedByName,omitempty"`
	ReturnedByName  *string    `db:"returned_by_name" json:"returnedByName,omitempty"`
	RequestDate     time.Time  `db:"request_date" json:"requestDate"`
	ApprovedDate    *time.Time `db:"approved_date" json:"approvedDate,omitempty"`
	CheckoutDate    *time.Time `db:"checkout_date" json:"checkoutDate,omitempty"`
	ExpectedReturn  time.Time  `db:"expected_return" json:"expectedReturn"`
	ActualReturn    *time.Time `db:"actual_return" json:"actualReturn,omitempty"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	ReturnCondition *string    `db:"return_condition" json:"returnCondition,omitempty"`
	Origin          string     `db:"origin" json:"origin"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	Overdue         bool       `db:"-" json:"overdue"`
}

// LoanExport returns every loan, newest first.
func (r *Reporter) LoanExport(ctx context.Context, today time.Time) ([]LoanExportRow, error) {
	rows := []LoanExportRow{}
	err := r.selectInto(ctx, &rows, r.q.Dialect.
		From(goqu.T(models.LoanTable).As("l")).
		Join(goqu.T(models.ItemTable).As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("l.item_id")))).
		Join(goqu.T(models.UserTable).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.borrower_id")))).
		LeftJoin(goqu.T(models.UserTable).As("ap"), goqu.On(goqu.I("ap.id").Eq(goqu.I("l.approved_by")))).
		LeftJoin(goqu.T(models.UserTable).As("rt"), goqu.On(goqu.I("rt.id").Eq(goqu.I("l.returned_by")))).
		Select(
			goqu.I("l.id").As("loan_id"),
			goqu.I("l.status"),
			goqu.I("i.asset_tag"),
			goqu.I("i.type").As("item_type"),
			goqu.I("u.name").As("borrower_name"),
			goqu.I("u.email").As("borrower_email"),
			goqu.I("ap.name").As("approved_by_name"),
			goqu.I("rt.name").As("returned_by_name"),
			goqu.I("l.request_date"),
			goqu.I("l.approved_date"),
			goqu.I("l.checkout_date"),
			goqu.I("l.expected_return"),
			goqu.I("l.actual_return"),
			goqu.I("l.reason"),
			goqu.I("l.return_condition"),
			goqu.I("l.origin"),
			goqu.I("l.created_at"),
		).
		Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Asc()))
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Overdue = rows[i].Status == string(models.LoanActive) && rows[i].ExpectedReturn.Before(today)
	}
	return rows, nil
}

type InventoryRow struct {
	ID               string     `db:"id" json:"id"`
	AssetTag         string     `db:"asset_tag" json:"assetTag"`
	SerialNumber     string     `db:"serial_number" json:"serialNumber"`
	StickerNumber    *string    `db:"sticker_number" json:"stickerNumber,omitempty"`
	Type             string     `db:"type" json:"type"`
	Brand            string     `db:"brand" json:"brand"`
	Model            string     `db:"model" json:"model"`
	Status           string     `db:"status" json:"status"`
	Condition        string     `db:"condition" json:"condition"`
	CanLeaveBuilding bool       `db:"can_leave_building" json:"canLeaveBuilding"`
	CategoryName     *string    `db:"category_name" json:"categoryName,omitempty"`
	LocationName     *string    `db:"location_name" json:"locationName,omitempty"`
	PurchaseDate     *time.Time `db:"purchase_date" json:"purchaseDate,omitempty"`
	PurchasePrice    *float64   `db:"purchase_price" json:"purchasePrice,omitempty"`
	WarrantyExpiry   *time.Time `db:"warranty_expiry" json:"warrantyExpiry,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

func (r *Reporter) inventoryQuery() *goqu.SelectDataset {
	return r.q.Dialect.
		From(goqu.T(models.ItemTable).As("i")).
		LeftJoin(goqu.T(models.CategoryTable).As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("i.category_id")))).
		LeftJoin(goqu.T(models.LocationTable).As("loc"), goqu.On(goqu.I("loc.id").Eq(goqu.I("i.location_id")))).
		Select(
			goqu.I("i.id"),
			goqu.I("i.asset_tag"),
			goqu.I("i.serial_number"),
			goqu.I("i.sticker_number"),
			goqu.I("i.type"),
			goqu.I("i.brand"),
			goqu.I("i.model"),
			goqu.I("i.status"),
			goqu.I("i.condition"),
			goqu.I("i.can_leave_building"),
			goqu.I("c.name").As("category_name"),
			goqu.I("loc.name").As("location_name"),
			goqu.I("i.purchase_date"),
			goqu.I("i.purchase_price"),
			goqu.I("i.warranty_expiry"),
			goqu.I("i.notes"),
			goqu.I("i.updated_at"),
		)
}

// InventoryExport lists all items ordered by asset tag.
func (r *Reporter) InventoryExport(ctx context.Context) ([]InventoryRow, error) {
	rows := []InventoryRow{}
	err := r.selectInto(ctx, &rows, r.inventoryQuery().Order(goqu.I("i.asset_tag").Asc()))
	return rows, err
}

type MaintenanceEntry struct {
	ID              string     `db:"id" json:"id"`
	ItemID          string     `db:"item_id" json:"-"`
	Action          string     `db:"action" json:"action"`
	MaintenanceType *string    `db:"maintenance_type" json:"maintenanceType,omitempty"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Cost            *float64   `db:"cost" json:"cost,omitempty"`
	PerformedBy     string     `db:"performed_by" json:"performedBy"`
	PerformedByName *string    `db:"performed_by_name" json:"performedByName,omitempty"`
	MaintenanceDate time.Time  `db:"maintenance_date" json:"maintenanceDate"`
	CreatedAt       *time.Time `db:"created_at" json:"createdAt,omitempty"`
}

type MaintenanceItem struct {
	InventoryRow
	History []MaintenanceEntry `db:"-" json:"history,omitempty"`
}

// MaintenanceItems lists items currently in maintenance, most recently
// updated first. withHistory attaches each item's maintenance log.
func (r *Reporter) MaintenanceItems(ctx context.Context, withHistory bool) ([]MaintenanceItem, error) {
	var inv []InventoryRow
	if err := r.selectInto(ctx, &inv, r.inventoryQuery().
		Where(goqu.I("i.status").Eq(string(models.ItemMaintenance))).
		Order(goqu.I("i.updated_at").Desc(), goqu.I("i.id").Asc())); err != nil {
		return nil, err
	}

	out := make([]MaintenanceItem, 0, len(inv))
	ids := make([]any, 0, len(inv))
	for _, row := range inv {
		out = append(out, MaintenanceItem{InventoryRow: row})
		ids = append(ids, row.ID)
	}
	if !withHistory || len(ids) == 0 {
		return out, nil
	}

	var entries []MaintenanceEntry
	if err := r.selectInto(ctx, &entries, r.q.Dialect.
		From(goqu.T(models.MaintenanceLogTable).As("m")).
		LeftJoin(goqu.T(models.UserTable).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("m.performed_by")))).
		Select(
			goqu.I("m.id"),
			goqu.I("m.item_id"),
			goqu.I("m.action"),
			goqu.I("m.maintenance_type"),
			goqu.I("m.description"),
			goqu.I("m.cost"),
			goqu.I("m.performed_by"),
			goqu.I("u.name").As("performed_by_name"),
			goqu.I("m.maintenance_date"),
			goqu.I("m.created_at"),
		).
		Where(goqu.I("m.item_id").In(ids...)).
		Order(goqu.I("m.created_at").Desc(), goqu.I("m.id").Asc())); err != nil {
		return nil, err
	}

	byItem := make(map[string][]MaintenanceEntry, len(out))
	for _, e := range entries {
		byItem[e.ItemID] = append(byItem[e.ItemID], e)
	}
	for i := range out {
		out[i].History = byItem[out[i].ID]
	}
	return out, nil
}
