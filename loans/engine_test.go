package loans

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"equipment_loaner/apperr"
	"equipment_loaner/auth"
	"equipment_loaner/availability"
	"equipment_loaner/db"
	"equipment_loaner/db/dbtest"
	"equipment_loaner/models"
	"equipment_loaner/policy"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var clock = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	gdb   *gorm.DB
	eng   *Engine
	admin *models.User
	staff *models.User
	alice *models.User
	bob   *models.User
	item  *models.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	f := &fixture{
		ctx:   context.Background(),
		gdb:   gdb,
		admin: dbtest.User(t, gdb, "admin", models.RoleAdmin),
		staff: dbtest.User(t, gdb, "staff", models.RoleStaff),
		alice: dbtest.User(t, gdb, "alice", models.RoleBorrower),
		bob:   dbtest.User(t, gdb, "bob", models.RoleBorrower),
		item:  dbtest.Item(t, gdb, "LT-100", models.ItemAvailable),
	}
	f.eng = NewEngine(db.NewRepo(gdb),
		WithClock(func() time.Time { return clock }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
	)
	return f
}

func as(u *models.User) policy.Actor { return policy.Actor{ID: u.ID, Role: u.Role} }

func (f *fixture) nextWeek() time.Time { return clock.AddDate(0, 0, 7) }

func (f *fixture) reloadItem(t *testing.T) *models.Item {
	t.Helper()
	var it models.Item
	require.NoError(t, f.gdb.First(&it, "id = ?", f.item.ID).Error)
	return &it
}

// assertConsistent runs the integrity audit over the whole database.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	q, err := db.NewQuery(f.gdb)
	require.NoError(t, err)
	rep, err := availability.NewAuditor(q, nil).Audit(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.Issues)

	var dup int64
	require.NoError(t, f.gdb.Raw(`
		SELECT COUNT(*) FROM (
			SELECT item_id, borrower_id FROM eq_loans
			WHERE status IN ('pending', 'active')
			GROUP BY item_id, borrower_id HAVING COUNT(*) > 1
		) d`).Scan(&dup).Error)
	assert.Zero(t, dup, "more than one open loan per (item, borrower)")
}

func (f *fixture) request(t *testing.T, u *models.User) *models.Loan {
	t.Helper()
	l, err := f.eng.RequestLoan(f.ctx, as(u), RequestLoanInput{
		ItemID:         f.item.ID,
		ExpectedReturn: f.nextWeek(),
		Reason:         "field work",
	})
	require.NoError(t, err)
	return l
}

func TestRequestCreatesPendingLoan(t *testing.T) {
	f := newFixture(t)

	loan := f.request(t, f.alice)

	assert.Equal(t, models.LoanPending, loan.Status)
	assert.Equal(t, models.OriginUser, loan.Origin)
	assert.True(t, loan.RequestDate.Equal(models.Day(clock)))
	assert.Equal(t, models.ItemAvailable, f.reloadItem(t).Status)
	f.assertConsistent(t)
}

func TestApproveChecksOutItem(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)

	loan, err := f.eng.ApproveLoan(f.ctx, as(f.admin), pending.ID)
	require.NoError(t, err)

	assert.Equal(t, models.LoanActive, loan.Status)
	require.NotNil(t, loan.ApprovedBy)
	assert.Equal(t, f.admin.ID, *loan.ApprovedBy)
	require.NotNil(t, loan.CheckoutDate)
	assert.True(t, loan.CheckoutDate.Equal(models.Day(clock)))
	assert.Equal(t, models.ItemLoaned, f.reloadItem(t).Status)

	_, err = f.eng.RequestLoan(f.ctx, as(f.bob), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	f.assertConsistent(t)
}

func TestReturnCopiesConditionToItem(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)
	_, err := f.eng.ApproveLoan(f.ctx, as(f.admin), pending.ID)
	require.NoError(t, err)

	fair := models.ConditionFair
	loan, err := f.eng.ReturnItem(f.ctx, as(f.staff), pending.ID, ReturnInput{
		Condition:  &fair,
		Notes:      "scratched lid",
		Inspection: map[string]any{"charger": "present"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.LoanReturned, loan.Status)
	require.NotNil(t, loan.ActualReturn)
	assert.True(t, loan.ActualReturn.Equal(models.Day(clock)))
	require.NotNil(t, loan.ReturnedBy)
	assert.Equal(t, f.staff.ID, *loan.ReturnedBy)
	assert.Equal(t, "present", loan.Inspection["charger"])

	it := f.reloadItem(t)
	assert.Equal(t, models.ItemAvailable, it.Status)
	assert.Equal(t, models.ConditionFair, it.Condition)
	f.assertConsistent(t)
}

func TestStaffCreateAutoApproveChecksOut(t *testing.T) {
	f := newFixture(t)

	loan, err := f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID:         f.item.ID,
		BorrowerEmail:  "BOB@example.edu",
		ExpectedReturn: f.nextWeek(),
		AutoApprove:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.LoanActive, loan.Status)
	assert.Equal(t, f.bob.ID, loan.BorrowerID)
	assert.Equal(t, models.OriginStaff, loan.Origin)
	require.NotNil(t, loan.ApprovedBy)
	assert.Equal(t, f.staff.ID, *loan.ApprovedBy)
	require.NotNil(t, loan.CreatedBy)
	assert.Equal(t, f.staff.ID, *loan.CreatedBy)
	assert.Equal(t, models.ItemLoaned, f.reloadItem(t).Status)
	f.assertConsistent(t)
}

func TestDenyLeavesItemAvailable(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)

	loan, err := f.eng.DenyLoan(f.ctx, as(f.admin), pending.ID, "not for personal use")
	require.NoError(t, err)

	assert.Equal(t, models.LoanDenied, loan.Status)
	require.NotNil(t, loan.DeniedBy)
	assert.Equal(t, f.admin.ID, *loan.DeniedBy)
	assert.Equal(t, "not for personal use", loan.DenialReason)
	assert.Equal(t, models.ItemAvailable, f.reloadItem(t).Status)

	// denied is terminal, so a fresh request is allowed
	f.request(t, f.alice)
	f.assertConsistent(t)
}

func TestSecondApprovalNotFound(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)
	_, err := f.eng.ApproveLoan(f.ctx, as(f.admin), pending.ID)
	require.NoError(t, err)

	_, err = f.eng.ApproveLoan(f.ctx, as(f.admin), pending.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, msgPendingNotFound, apperr.PublicMessage(err))
	f.assertConsistent(t)
}

func TestDuplicateRequestRejected(t *testing.T) {
	f := newFixture(t)
	f.request(t, f.alice)

	_, err := f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: clock.AddDate(0, 0, -1)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "gte_today", apperr.FieldsOf(err)["expectedReturn"])

	_, err = f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ExpectedReturn: f.nextWeek()})
	assert.Equal(t, "required", apperr.FieldsOf(err)["itemId"])

	// due today is fine
	_, err = f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: clock})
	assert.NoError(t, err)
}

func TestRequestUnknownItemOrInactiveUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ItemID: uuid.NewString(), ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ItemID: "missing", ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "uuid", apperr.FieldsOf(err)["itemId"])

	require.NoError(t, f.gdb.Model(f.bob).Update("active", false).Error)
	_, err = f.eng.RequestLoan(f.ctx, as(f.bob), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRequestItemInMaintenance(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.MarkMaintenance(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{Notes: "battery swap"})
	require.NoError(t, err)

	_, err = f.eng.RequestLoan(f.ctx, as(f.alice), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestApproveRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	first := f.request(t, f.alice)
	second := f.request(t, f.bob)

	_, err := f.eng.ApproveLoan(f.ctx, as(f.admin), first.ID)
	require.NoError(t, err)

	_, err = f.eng.ApproveLoan(f.ctx, as(f.admin), second.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, msgNoLongerAvail, apperr.PublicMessage(err))

	// the rejected approval left the second loan pending
	var l models.Loan
	require.NoError(t, f.gdb.First(&l, "id = ?", second.ID).Error)
	assert.Equal(t, models.LoanPending, l.Status)
	f.assertConsistent(t)
}

func TestConcurrentApprovalsSingleWinner(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)

	const n = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.ApproveLoan(f.ctx, as(f.admin), pending.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range errs {
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	}
	f.assertConsistent(t)
}

func TestBorrowerCannotApprove(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)

	_, err := f.eng.ApproveLoan(f.ctx, as(f.alice), pending.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.eng.ApproveLoan(f.ctx, as(f.staff), pending.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestReturnWithoutConditionKeepsCondition(t *testing.T) {
	f := newFixture(t)
	pending := f.request(t, f.alice)
	_, err := f.eng.ApproveLoan(f.ctx, as(f.admin), pending.ID)
	require.NoError(t, err)

	loan, err := f.eng.ReturnItem(f.ctx, as(f.admin), pending.ID, ReturnInput{})
	require.NoError(t, err)
	assert.Nil(t, loan.ReturnCondition)
	assert.Equal(t, models.ConditionGood, f.reloadItem(t).Condition)

	_, err = f.eng.ReturnItem(f.ctx, as(f.admin), pending.ID, ReturnInput{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, msgActiveNotFound, apperr.PublicMessage(err))
}

func TestReturnDamagedMarksItemPoor(t *testing.T) {
	f := newFixture(t)
	loan, err := f.eng.StaffCreateLoan(f.ctx, as(f.admin), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: f.alice.ID, ExpectedReturn: f.nextWeek(), AutoApprove: true,
	})
	require.NoError(t, err)

	damaged := models.ConditionDamaged
	loan, err = f.eng.ReturnItem(f.ctx, as(f.staff), loan.ID, ReturnInput{Condition: &damaged})
	require.NoError(t, err)
	require.NotNil(t, loan.ReturnCondition)
	assert.Equal(t, models.ConditionDamaged, *loan.ReturnCondition)
	assert.Equal(t, models.ConditionPoor, f.reloadItem(t).Condition)
}

func TestReturnRejectsUnknownCondition(t *testing.T) {
	f := newFixture(t)
	bad := models.Condition("mint")
	_, err := f.eng.ReturnItem(f.ctx, as(f.staff), "whatever", ReturnInput{Condition: &bad})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "return_condition", apperr.FieldsOf(err)["returnCondition"])
}

func TestStaffCreatePendingLoan(t *testing.T) {
	f := newFixture(t)
	loan, err := f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: f.bob.ID, ExpectedReturn: f.nextWeek(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanPending, loan.Status)
	assert.Nil(t, loan.ApprovedBy)
	assert.Equal(t, models.ItemAvailable, f.reloadItem(t).Status)

	_, err = f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerEmail: "nobody@example.edu", ExpectedReturn: f.nextWeek(),
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.eng.StaffCreateLoan(f.ctx, as(f.alice), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: f.bob.ID, ExpectedReturn: f.nextWeek(),
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestMaintenanceCycle(t *testing.T) {
	f := newFixture(t)
	cost := 42.5

	it, err := f.eng.MarkMaintenance(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{
		Notes: "fan noise", MaintenanceType: "repair", Cost: &cost,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ItemMaintenance, it.Status)

	_, err = f.eng.MarkMaintenance(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	it, err = f.eng.MarkAvailable(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{Notes: "fan replaced"})
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, it.Status)

	_, err = f.eng.MarkAvailable(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	logs, err := f.eng.MaintenanceHistory(f.ctx, as(f.admin), f.item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	actions := []models.MaintenanceAction{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []models.MaintenanceAction{models.MaintenanceStarted, models.MaintenanceCompleted}, actions)
}

func TestMaintenanceBlockedWhileLoaned(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: f.alice.ID, ExpectedReturn: f.nextWeek(), AutoApprove: true,
	})
	require.NoError(t, err)

	_, err = f.eng.MarkMaintenance(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, models.ItemLoaned, f.reloadItem(t).Status)
}

func TestUpdateItemStatusRules(t *testing.T) {
	f := newFixture(t)
	loaned := models.ItemLoaned
	_, err := f.eng.UpdateItem(f.ctx, as(f.staff), f.item.ID, ItemPatch{Status: &loaned})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	faulty := models.ItemFaulty
	brand := "Lenovo"
	it, err := f.eng.UpdateItem(f.ctx, as(f.staff), f.item.ID, ItemPatch{Status: &faulty, Brand: &brand})
	require.NoError(t, err)
	assert.Equal(t, models.ItemFaulty, it.Status)
	assert.Equal(t, "Lenovo", it.Brand)

	_, err = f.eng.UpdateItem(f.ctx, as(f.alice), f.item.ID, ItemPatch{Brand: &brand})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpdateItemCannotToggleMaintenance(t *testing.T) {
	f := newFixture(t)
	maint := models.ItemMaintenance
	_, err := f.eng.UpdateItem(f.ctx, as(f.staff), f.item.ID, ItemPatch{Status: &maint})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, models.ItemAvailable, f.reloadItem(t).Status)

	_, err = f.eng.MarkMaintenance(f.ctx, as(f.staff), f.item.ID, MaintenanceInput{Notes: "lens"})
	require.NoError(t, err)
	avail := models.ItemAvailable
	_, err = f.eng.UpdateItem(f.ctx, as(f.staff), f.item.ID, ItemPatch{Status: &avail})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, models.ItemMaintenance, f.reloadItem(t).Status)

	// only the toggle wrote a log entry
	logs, err := f.eng.MaintenanceHistory(f.ctx, as(f.staff), f.item.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = f.eng.CreateItem(f.ctx, as(f.staff), ItemInput{AssetTag: "M-1", SerialNumber: "S-M-1", Type: "camera", Status: &maint})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUpdateLoanedItemStatusBlocked(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: f.alice.ID, ExpectedReturn: f.nextWeek(), AutoApprove: true,
	})
	require.NoError(t, err)

	avail := models.ItemAvailable
	_, err = f.eng.UpdateItem(f.ctx, as(f.admin), f.item.ID, ItemPatch{Status: &avail})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	notes := "sticker replaced"
	it, err := f.eng.UpdateItem(f.ctx, as(f.admin), f.item.ID, ItemPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.ItemLoaned, it.Status)
	f.assertConsistent(t)
}

func TestCreateItemConflicts(t *testing.T) {
	f := newFixture(t)
	in := ItemInput{AssetTag: "NEW-1", SerialNumber: "S-NEW-1", Type: "camera"}
	it, err := f.eng.CreateItem(f.ctx, as(f.staff), in)
	require.NoError(t, err)
	assert.Equal(t, models.ItemAvailable, it.Status)
	assert.Equal(t, models.ConditionGood, it.Condition)

	_, err = f.eng.CreateItem(f.ctx, as(f.staff), in)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	loaned := models.ItemLoaned
	_, err = f.eng.CreateItem(f.ctx, as(f.staff), ItemInput{AssetTag: "NEW-2", SerialNumber: "S-2", Type: "camera", Status: &loaned})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	cat := uint(999)
	_, err = f.eng.CreateItem(f.ctx, as(f.staff), ItemInput{AssetTag: "NEW-3", SerialNumber: "S-3", Type: "camera", CategoryID: &cat})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)

	// open loan blocks
	pending := f.request(t, f.alice)
	_, err := f.eng.DeleteItem(f.ctx, as(f.admin), f.item.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// history retires
	_, err = f.eng.DenyLoan(f.ctx, as(f.admin), pending.ID, "")
	require.NoError(t, err)
	retired, err := f.eng.DeleteItem(f.ctx, as(f.admin), f.item.ID)
	require.NoError(t, err)
	assert.True(t, retired)
	assert.Equal(t, models.ItemRetired, f.reloadItem(t).Status)

	// no history deletes
	fresh, err := f.eng.CreateItem(f.ctx, as(f.staff), ItemInput{AssetTag: "TMP-1", SerialNumber: "S-TMP", Type: "tripod"})
	require.NoError(t, err)
	retired, err = f.eng.DeleteItem(f.ctx, as(f.admin), fresh.ID)
	require.NoError(t, err)
	assert.False(t, retired)
	_, err = f.eng.GetItem(f.ctx, as(f.admin), fresh.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.eng.DeleteItem(f.ctx, as(f.staff), f.item.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

type fakeRevoker struct{ revoked []string }

func (r *fakeRevoker) RevokeUser(_ context.Context, id string) error {
	r.revoked = append(r.revoked, id)
	return nil
}

func TestDeactivateUser(t *testing.T) {
	f := newFixture(t)
	rev := &fakeRevoker{}
	WithSessionRevoker(rev)(f.eng)

	f.request(t, f.alice)
	err := f.eng.DeactivateUser(f.ctx, as(f.admin), f.alice.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = f.eng.DeactivateUser(f.ctx, as(f.admin), f.admin.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = f.eng.DeactivateUser(f.ctx, as(f.staff), f.bob.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, f.eng.DeactivateUser(f.ctx, as(f.admin), f.bob.ID))
	u, err := f.eng.GetUser(f.ctx, as(f.admin), f.bob.ID)
	require.NoError(t, err)
	assert.False(t, u.Active)
	assert.Equal(t, []string{f.bob.ID}, rev.revoked)
}

func TestDeactivatedBorrowerCannotBeLentTo(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.DeactivateUser(f.ctx, as(f.admin), f.bob.ID))

	_, err := f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: f.bob.ID, ExpectedReturn: f.nextWeek(), AutoApprove: true,
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerEmail: f.bob.Email, ExpectedReturn: f.nextWeek(),
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.eng.RequestLoan(f.ctx, as(f.bob), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: f.nextWeek()})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, models.ItemAvailable, f.reloadItem(t).Status)
}

func TestConcurrentDeactivateAndRequest(t *testing.T) {
	f := newFixture(t)

	var (
		wg       sync.WaitGroup
		loanErr  error
		deactErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, loanErr = f.eng.RequestLoan(f.ctx, as(f.bob), RequestLoanInput{ItemID: f.item.ID, ExpectedReturn: f.nextWeek()})
	}()
	go func() {
		defer wg.Done()
		deactErr = f.eng.DeactivateUser(f.ctx, as(f.admin), f.bob.ID)
	}()
	wg.Wait()

	// exactly one side wins; an inactive user never holds an open loan
	if deactErr == nil {
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(loanErr))
	} else {
		require.NoError(t, loanErr)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(deactErr))
	}
	f.assertConsistent(t)
}

func TestMalformedIDsReadAsMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.GetLoan(f.ctx, as(f.admin), "abc")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.eng.ApproveLoan(f.ctx, as(f.admin), "abc")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.eng.ReturnItem(f.ctx, as(f.admin), "1; drop", ReturnInput{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.eng.GetItem(f.ctx, as(f.admin), "LT-100")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.eng.MarkMaintenance(f.ctx, as(f.staff), "x", MaintenanceInput{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.eng.GetUser(f.ctx, as(f.admin), "bob")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	err = f.eng.DeactivateUser(f.ctx, as(f.admin), "bob")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.eng.StaffCreateLoan(f.ctx, as(f.staff), StaffCreateLoanInput{
		ItemID: f.item.ID, BorrowerID: "bob", ExpectedReturn: f.nextWeek(),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "uuid", apperr.FieldsOf(err)["borrowerId"])

	_, err = f.eng.ListLoans(f.ctx, as(f.staff), db.LoanFilter{ItemID: "LT-100"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateUserRoles(t *testing.T) {
	f := newFixture(t)

	u, err := f.eng.CreateUser(f.ctx, as(f.staff), UserInput{
		Username: "carol", Password: "longenough", Name: "Carol", Email: "Carol@Example.edu",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleBorrower, u.Role)
	assert.Equal(t, "carol@example.edu", u.Email)
	assert.NoError(t, auth.NewBcryptHasher(bcrypt.MinCost).Compare(u.PasswordHash, "longenough"))

	_, err = f.eng.CreateUser(f.ctx, as(f.staff), UserInput{
		Username: "dave", Name: "Dave", Email: "dave@example.edu", Role: models.RoleStaff,
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.eng.CreateUser(f.ctx, as(f.admin), UserInput{
		Username: "carol", Name: "Other Carol", Email: "other@example.edu",
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = f.eng.CreateUser(f.ctx, as(f.admin), UserInput{
		Username: "erin", Name: "Erin", Email: "erin@example.edu", Role: "superuser",
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "role", apperr.FieldsOf(err)["role"])
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	role := models.RoleStaff
	name := "Robert"
	u, err := f.eng.UpdateUser(f.ctx, as(f.admin), f.bob.ID, UserPatch{Role: &role, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, u.Role)
	assert.Equal(t, "Robert", u.Name)

	demote := models.RoleBorrower
	_, err = f.eng.UpdateUser(f.ctx, as(f.admin), f.admin.ID, UserPatch{Role: &demote})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestListLoansScopedForBorrowers(t *testing.T) {
	f := newFixture(t)
	f.request(t, f.alice)
	f.request(t, f.bob)

	page, err := f.eng.ListLoans(f.ctx, as(f.alice), db.LoanFilter{BorrowerID: f.bob.ID})
	require.NoError(t, err)
	require.Len(t, page.Loans, 1)
	assert.Equal(t, f.alice.ID, page.Loans[0].BorrowerID)

	page, err = f.eng.ListLoans(f.ctx, as(f.staff), db.LoanFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = f.eng.ListLoans(f.ctx, as(f.staff), db.LoanFilter{Search: "bob"})
	require.NoError(t, err)
	require.Len(t, page.Loans, 1)
	assert.Equal(t, f.bob.ID, page.Loans[0].BorrowerID)

	other := page.Loans[0].ID
	_, err = f.eng.GetLoan(f.ctx, as(f.alice), other)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCatalogLookups(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.CreateCategory(f.ctx, as(f.staff), LookupInput{Name: "Cameras"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	cat, err := f.eng.CreateCategory(f.ctx, as(f.admin), LookupInput{Name: "  Cameras "})
	require.NoError(t, err)
	assert.Equal(t, "Cameras", cat.Name)

	_, err = f.eng.CreateCategory(f.ctx, as(f.admin), LookupInput{Name: "Cameras"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = f.eng.CreateLocation(f.ctx, as(f.admin), LookupInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.eng.CreateLocation(f.ctx, as(f.admin), LookupInput{Name: "Lab 2", Address: "Engineering Hall"})
	require.NoError(t, err)

	cats, err := f.eng.ListCategories(f.ctx, as(f.alice))
	require.NoError(t, err)
	require.Len(t, cats, 1)
	locs, err := f.eng.ListLocations(f.ctx, as(f.alice))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Engineering Hall", locs[0].Address)
}
