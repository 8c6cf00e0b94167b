package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"equipment_loaner/db"
	"equipment_loaner/models"

	"github.com/doug-martin/goqu/v9"
)

var ErrBuildingQueryFailed = errors.New("building audit query failed")

type IssueKind string

const (
	IssueStatusMismatch   IssueKind = "status_mismatch"
	IssueMultipleActive   IssueKind = "multiple_active_loans"
	IssueInactiveBorrower IssueKind = "open_loan_inactive_borrower"
)

type Issue struct {
	Kind           IssueKind         `json:"kind"`
	ItemID         string            `json:"itemId"`
	AssetTag       string            `json:"assetTag,omitempty"`
	Status         models.ItemStatus `json:"status,omitempty"`
	ExpectedStatus models.ItemStatus `json:"expectedStatus,omitempty"`
	ActiveLoans    int64             `json:"activeLoans"`
	LoanID         string            `json:"loanId,omitempty"`
	BorrowerID     string            `json:"borrowerId,omitempty"`
	Borrower       string            `json:"borrower,omitempty"`
}

type Report struct {
	CheckedAt    time.Time `json:"checkedAt"`
	ItemsChecked int       `json:"itemsChecked"`
	Healthy      bool      `json:"healthy"`
	Issues       []Issue   `json:"issues"`
}

// Auditor is a read-only integrity check over items, loans and users.
type Auditor struct {
	q      *db.Query
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditor(q *db.Query, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{q: q, logger: logger, now: time.Now}
}

type itemLoanCount struct {
	ID          string            `db:"id"`
	AssetTag    string            `db:"asset_tag"`
	Status      models.ItemStatus `db:"status"`
	ActiveLoans int64             `db:"active_loans"`
}

type openLoanRow struct {
	LoanID     string `db:"loan_id"`
	ItemID     string `db:"item_id"`
	AssetTag   string `db:"asset_tag"`
	BorrowerID string `db:"borrower_id"`
	Username   string `db:"username"`
}

func (a *Auditor) Audit(ctx context.Context) (Report, error) {
	rep := Report{CheckedAt: a.now().UTC(), Issues: []Issue{}}

	counts, err := a.itemLoanCounts(ctx)
	if err != nil {
		return Report{}, err
	}
	rep.ItemsChecked = len(counts)
	for _, c := range counts {
		rep.Issues = append(rep.Issues, inspectItem(c)...)
	}

	orphans, err := a.openLoansOfInactiveUsers(ctx)
	if err != nil {
		return Report{}, err
	}
	for _, o := range orphans {
		rep.Issues = append(rep.Issues, Issue{
			Kind:       IssueInactiveBorrower,
			ItemID:     o.ItemID,
			AssetTag:   o.AssetTag,
			LoanID:     o.LoanID,
			BorrowerID: o.BorrowerID,
			Borrower:   o.Username,
		})
	}

	rep.Healthy = len(rep.Issues) == 0
	if !rep.Healthy {
		a.logger.Warn("integrity audit found issues", "issues", len(rep.Issues))
	}
	return rep, nil
}

// inspectItem applies the availability rules to one item's aggregate.
func inspectItem(c itemLoanCount) []Issue {
	var out []Issue
	if c.ActiveLoans > 1 {
		out = append(out, Issue{
			Kind:        IssueMultipleActive,
			ItemID:      c.ID,
			AssetTag:    c.AssetTag,
			Status:      c.Status,
			ActiveLoans: c.ActiveLoans,
		})
	}
	if want, ok := ExpectedStatus(c.Status, c.ActiveLoans > 0); !ok {
		out = append(out, Issue{
			Kind:           IssueStatusMismatch,
			ItemID:         c.ID,
			AssetTag:       c.AssetTag,
			Status:         c.Status,
			ExpectedStatus: want,
			ActiveLoans:    c.ActiveLoans,
		})
	}
	return out
}

func (a *Auditor) itemLoanCounts(ctx context.Context) ([]itemLoanCount, error) {
	stmt := a.q.Dialect.
		From(goqu.T(models.ItemTable).As("i")).
		LeftJoin(goqu.T(models.LoanTable).As("l"), goqu.On(
			goqu.I("l.item_id").Eq(goqu.I("i.id")),
			goqu.I("l.status").Eq(string(models.LoanActive)),
		)).
		Select(
			goqu.I("i.id"),
			goqu.I("i.asset_tag"),
			goqu.I("i.status"),
			goqu.COUNT(goqu.I("l.id")).As("active_loans"),
		).
		GroupBy(goqu.I("i.id"), goqu.I("i.asset_tag"), goqu.I("i.status")).
		Order(goqu.I("i.asset_tag").Asc())

	query, _, err := stmt.ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}
	var rows []itemLoanCount
	if err := a.q.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *Auditor) openLoansOfInactiveUsers(ctx context.Context) ([]openLoanRow, error) {
	stmt := a.q.Dialect.
		From(goqu.T(models.LoanTable).As("l")).
		Join(goqu.T(models.UserTable).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.borrower_id")))).
		Join(goqu.T(models.ItemTable).As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("l.item_id")))).
		Select(
			goqu.I("l.id").As("loan_id"),
			goqu.I("l.item_id"),
			goqu.I("i.asset_tag"),
			goqu.I("l.borrower_id"),
			goqu.I("u.username"),
		).
		Where(
			goqu.I("l.status").In(string(models.LoanPending), string(models.LoanActive)),
			goqu.I("u.active").IsFalse(),
		).
		Order(goqu.I("l.id").Asc())

	query, _, err := stmt.ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}
	var rows []openLoanRow
	if err := a.q.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
