// db/repo_items_admin.go
package db

import (
	"context"
	"time"

	"equipment_loaner/models"
)

type AdminItemRow struct {
	// Item fields
	ID           string            `json:"id"`
	AssetTag     string            `json:"assetTag"`
	SerialNumber string            `json:"serialNumber"`
	Type         string            `json:"type"`
	Brand        string            `json:"brand"`
	Model        string            `json:"model"`
	Status       models.ItemStatus `json:"status"`
	Condition    models.Condition  `json:"condition"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`

	// Current active loan (nullable)
	LoanID         *string    `json:"loanId,omitempty"`
	BorrowerID     *string    `json:"borrowerId,omitempty"`
	BorrowerName   *string    `json:"borrowerName,omitempty"`
	BorrowerEmail  *string    `json:"borrowerEmail,omitempty"`
	CheckoutDate   *time.Time `json:"checkoutDate,omitempty"`
	ExpectedReturn *time.Time `json:"expectedReturn,omitempty"`
	Overdue        bool       `json:"overdue" gorm:"-"`
}

type PagedAdminItems struct {
	Total int64          `json:"total"`
	Items []AdminItemRow `json:"items"`
}

// ListItemsWithCurrentLoan is the staff view of the catalogue: each item with
// its active loan, if any. The partial unique index guarantees at most one.
func (r *Repo) ListItemsWithCurrentLoan(ctx context.Context, f ItemFilter, today time.Time) (*PagedAdminItems, error) {
	f.normalize()
	qry := r.itemsQuery(ctx, f, "i")

	var total int64
	if err := qry.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AdminItemRow
	if err := qry.
		Select(`
			i.id, i.asset_tag, i.serial_number, i.type, i.brand, i.model,
			i.status, i.condition, i.created_at, i.updated_at,
			ol.id              AS loan_id,
			ol.borrower_id     AS borrower_id,
			ol.checkout_date   AS checkout_date,
			ol.expected_return AS expected_return,
			u.name             AS borrower_name,
			u.email            AS borrower_email
		`).
		Joins("LEFT JOIN " + models.LoanTable + " ol ON ol.item_id = i.id AND ol.status = 'active'").
		Joins("LEFT JOIN " + models.UserTable + " u ON u.id = ol.borrower_id").
		Order("i.asset_tag ASC").
		Offset((f.Page - 1) * f.Size).Limit(f.Size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	// overdue 在读取时计算，不入库
	for i := range rows {
		rows[i].Overdue = rows[i].ExpectedReturn != nil && rows[i].ExpectedReturn.Before(today)
	}
	return &PagedAdminItems{Total: total, Items: rows}, nil
}
