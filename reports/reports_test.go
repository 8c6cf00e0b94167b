package reports

import (
	"context"
	"testing"
	"time"

	"equipment_loaner/db"
	"equipment_loaner/db/dbtest"
	"equipment_loaner/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newReporter(t *testing.T, gdb *gorm.DB) *Reporter {
	t.Helper()
	q, err := db.NewQuery(gdb)
	require.NoError(t, err)
	return NewReporter(q)
}

func TestRankOverdueOrdering(t *testing.T) {
	rows := []OverdueLoan{
		{LoanID: "c", ExpectedReturn: today.AddDate(0, 0, -1)},
		{LoanID: "b", ExpectedReturn: today.AddDate(0, 0, -5)},
		{LoanID: "a", ExpectedReturn: today.AddDate(0, 0, -5)},
	}
	got := RankOverdue(rows, today)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].LoanID, got[1].LoanID, got[2].LoanID})
	assert.Equal(t, 5, got[0].DaysOverdue)
	assert.Equal(t, 1, got[2].DaysOverdue)
	assert.NotNil(t, RankOverdue(nil, today))
}

func TestDaysBetweenIgnoresClockTime(t *testing.T) {
	due := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(due, now))
}

func seedLoans(t *testing.T, gdb *gorm.DB) (overdue3, overdue1 *models.Loan) {
	t.Helper()
	alice := dbtest.User(t, gdb, "alice", models.RoleBorrower)
	bob := dbtest.User(t, gdb, "bob", models.RoleBorrower)

	a := dbtest.Item(t, gdb, "A-1", models.ItemLoaned)
	b := dbtest.Item(t, gdb, "B-1", models.ItemLoaned)
	c := dbtest.Item(t, gdb, "C-1", models.ItemLoaned)
	d := dbtest.Item(t, gdb, "D-1", models.ItemAvailable)
	dbtest.Item(t, gdb, "E-1", models.ItemMaintenance)

	overdue3 = dbtest.Loan(t, gdb, a, alice, models.LoanActive, today.AddDate(0, 0, -3))
	overdue1 = dbtest.Loan(t, gdb, b, bob, models.LoanActive, today.AddDate(0, 0, -1))
	dbtest.Loan(t, gdb, c, bob, models.LoanActive, today) // due today, not overdue
	dbtest.Loan(t, gdb, d, alice, models.LoanPending, today.AddDate(0, 0, -10))
	return overdue3, overdue1
}

func TestOverdueLoans(t *testing.T) {
	gdb := dbtest.Open(t)
	o3, o1 := seedLoans(t, gdb)
	r := newReporter(t, gdb)

	rows, err := r.OverdueLoans(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, o3.ID, rows[0].LoanID)
	assert.Equal(t, 3, rows[0].DaysOverdue)
	assert.Equal(t, "A-1", rows[0].AssetTag)
	assert.Equal(t, "Alice", rows[0].BorrowerName)
	assert.Equal(t, o1.ID, rows[1].LoanID)
	assert.Equal(t, 1, rows[1].DaysOverdue)

	again, err := r.OverdueLoans(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

func TestDashboardStats(t *testing.T) {
	gdb := dbtest.Open(t)
	seedLoans(t, gdb)

	st, err := newReporter(t, gdb).DashboardStats(context.Background(), today)
	require.NoError(t, err)

	assert.EqualValues(t, 5, st.TotalItems)
	assert.EqualValues(t, 3, st.Items[models.ItemLoaned])
	assert.EqualValues(t, 1, st.Items[models.ItemMaintenance])
	assert.Contains(t, st.Items, models.ItemRetired)
	assert.EqualValues(t, 0, st.Items[models.ItemRetired])

	assert.EqualValues(t, 3, st.Loans[models.LoanActive])
	assert.EqualValues(t, 1, st.Loans[models.LoanPending])
	assert.Contains(t, st.Loans, models.LoanDenied)
	assert.EqualValues(t, 2, st.Overdue)
	assert.EqualValues(t, 2, st.ActiveUsers)
}

func TestLoanExportNewestFirst(t *testing.T) {
	gdb := dbtest.Open(t)
	seedLoans(t, gdb)

	rows, err := newReporter(t, gdb).LoanExport(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.After(rows[i-1].CreatedAt))
	}

	overdue := 0
	for _, r := range rows {
		if r.Overdue {
			overdue++
		}
	}
	assert.Equal(t, 2, overdue)
}

func TestInventoryAndMaintenance(t *testing.T) {
	gdb := dbtest.Open(t)
	seedLoans(t, gdb)
	cat := models.Category{Name: "Cameras"}
	require.NoError(t, gdb.Create(&cat).Error)

	var e models.Item
	require.NoError(t, gdb.First(&e, "asset_tag = ?", "E-1").Error)
	require.NoError(t, gdb.Model(&e).Update("category_id", cat.ID).Error)
	admin := dbtest.User(t, gdb, "admin", models.RoleAdmin)
	require.NoError(t, db.NewRepo(gdb).AppendMaintenanceLog(context.Background(), &models.MaintenanceLog{
		ItemID: e.ID, PerformedBy: admin.ID, Action: models.MaintenanceStarted,
		Description: "lens cleaning", MaintenanceDate: today,
	}))

	r := newReporter(t, gdb)
	inv, err := r.InventoryExport(context.Background())
	require.NoError(t, err)
	require.Len(t, inv, 5)
	assert.Equal(t, "A-1", inv[0].AssetTag)
	assert.Equal(t, "E-1", inv[4].AssetTag)
	require.NotNil(t, inv[4].CategoryName)
	assert.Equal(t, "Cameras", *inv[4].CategoryName)

	items, err := r.MaintenanceItems(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "E-1", items[0].AssetTag)
	require.Len(t, items[0].History, 1)
	assert.Equal(t, "started", items[0].History[0].Action)
	require.NotNil(t, items[0].History[0].PerformedByName)
	assert.Equal(t, "Admin", *items[0].History[0].PerformedByName)

	items, err = r.MaintenanceItems(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, items[0].History)
}
