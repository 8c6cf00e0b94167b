// Package reports builds the read-only derived views: dashboard counts,
// overdue loans and the export projections. Nothing here is stored; every
// call recomputes from the current rows.
package reports

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"equipment_loaner/db"
	"equipment_loaner/models"

	"github.com/doug-martin/goqu/v9"
)

var ErrBuildingQueryFailed = errors.New("building report query failed")

type Reporter struct {
	q *db.Query
}

func NewReporter(q *db.Query) *Reporter { return &Reporter{q: q} }

func (r *Reporter) selectInto(ctx context.Context, dest any, stmt *goqu.SelectDataset) error {
	query, _, err := stmt.ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}
	return r.q.DB.SelectContext(ctx, dest, query)
}

func (r *Reporter) getInto(ctx context.Context, dest any, stmt *goqu.SelectDataset) error {
	query, _, err := stmt.ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}
	return r.q.DB.GetContext(ctx, dest, query)
}

// Dashboard

type DashboardStats struct {
	Items       map[models.ItemStatus]int64 `json:"items"`
	TotalItems  int64                       `json:"totalItems"`
	Loans       map[models.LoanStatus]int64 `json:"loans"`
	Overdue     int64                       `json:"overdue"`
	ActiveUsers int64                       `json:"activeUsers"`
}

type statusCount struct {
	Status string `db:"status"`
	N      int64  `db:"n"`
}

func (r *Reporter) countByStatus(ctx context.Context, table string) ([]statusCount, error) {
	var rows []statusCount
	err := r.selectInto(ctx, &rows, r.q.Dialect.
		From(table).
		Select(goqu.I("status"), goqu.COUNT(goqu.Star()).As("n")).
		GroupBy(goqu.I("status")))
	return rows, err
}

// DashboardStats counts items and loans per status. Every status is present
// in the maps, zero when no row has it.
func (r *Reporter) DashboardStats(ctx context.Context, today time.Time) (DashboardStats, error) {
	st := DashboardStats{
		Items: make(map[models.ItemStatus]int64, len(models.ItemStatuses)),
		Loans: make(map[models.LoanStatus]int64, len(models.LoanStatuses)),
	}
	for _, s := range models.ItemStatuses {
		st.Items[s] = 0
	}
	for _, s := range models.LoanStatuses {
		st.Loans[s] = 0
	}

	items, err := r.countByStatus(ctx, models.ItemTable)
	if err != nil {
		return DashboardStats{}, err
	}
	for _, c := range items {
		st.Items[models.ItemStatus(c.Status)] = c.N
		st.TotalItems += c.N
	}

	loans, err := r.countByStatus(ctx, models.LoanTable)
	if err != nil {
		return DashboardStats{}, err
	}
	for _, c := range loans {
		st.Loans[models.LoanStatus(c.Status)] = c.N
	}

	if err := r.getInto(ctx, &st.Overdue, r.q.Dialect.
		From(models.LoanTable).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.I("status").Eq(string(models.LoanActive)),
			goqu.I("expected_return").Lt(db.DateLiteral(today)),
		)); err != nil {
		return DashboardStats{}, err
	}

	if err := r.getInto(ctx, &st.ActiveUsers, r.q.Dialect.
		From(models.UserTable).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.I("active").IsTrue())); err != nil {
		return DashboardStats{}, err
	}
	return st, nil
}

// Overdue loans

type OverdueLoan struct {
	LoanID         string     `db:"loan_id" json:"loanId"`
	ItemID         string     `db:"item_id" json:"itemId"`
	AssetTag       string     `db:"asset_tag" json:"assetTag"`
	ItemType       string     `db:"item_type" json:"itemType"`
	Brand          string     `db:"brand" json:"brand"`
	Model          string     `db:"model" json:"model"`
	BorrowerID     string     `db:"borrower_id" json:"borrowerId"`
	BorrowerName   string     `db:"borrower_name" json:"borrowerName"`
	BorrowerEmail  string     `db:"borrower_email" json:"borrowerEmail"`
	CheckoutDate   *time.Time `db:"checkout_date" json:"checkoutDate,omitempty"`
	ExpectedReturn time.Time  `db:"expected_return" json:"expectedReturn"`
	DaysOverdue    int        `db:"-" json:"daysOverdue"`
}

// OverdueLoans lists active loans past their expected return, most overdue first.
func (r *Reporter) OverdueLoans(ctx context.Context, today time.Time) ([]OverdueLoan, error) {
	var rows []OverdueLoan
	err := r.selectInto(ctx, &rows, r.q.Dialect.
		From(goqu.T(models.LoanTable).As("l")).
		Join(goqu.T(models.ItemTable).As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("l.item_id")))).
		Join(goqu.T(models.UserTable).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.borrower_id")))).
		Select(
			goqu.I("l.id").As("loan_id"),
			goqu.I("l.item_id"),
			goqu.I("i.asset_tag"),
			goqu.I("i.type").As("item_type"),
			goqu.I("i.brand"),
			goqu.I("i.model"),
			goqu.I("l.borrower_id"),
			goqu.I("u.name").As("borrower_name"),
			goqu.I("u.email").As("borrower_email"),
			goqu.I("l.checkout_date"),
			goqu.I("l.expected_return"),
		).
		Where(
			goqu.I("l.status").Eq(string(models.LoanActive)),
			goqu.I("l.expected_return").Lt(db.DateLiteral(today)),
		))
	if err != nil {
		return nil, err
	}
	return RankOverdue(rows, today), nil
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(models.Day(b).Sub(models.Day(a)).Hours() / 24)
}

// RankOverdue fills DaysOverdue and sorts by days overdue descending, then
// loan id ascending, so the order is stable for unchanged data.
func RankOverdue(rows []OverdueLoan, today time.Time) []OverdueLoan {
	for i := range rows {
		rows[i].DaysOverdue = DaysBetween(rows[i].ExpectedReturn, today)
	}
	slices.SortFunc(rows, func(a, b OverdueLoan) int {
		if c := cmp.Compare(b.DaysOverdue, a.DaysOverdue); c != 0 {
			return c
		}
		return cmp.Compare(a.LoanID, b.LoanID)
	})
	if rows == nil {
		rows = []OverdueLoan{}
	}
	return rows
}
