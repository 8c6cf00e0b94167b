// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"equipment_loaner/db"
	"equipment_loaner/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Open returns a migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)

	gdb, err := db.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// Seed helpers insert rows directly, bypassing engine rules.

func User(t testing.TB, gdb *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "x",
		Name:         strings.ToUpper(username[:1]) + username[1:],
		Email:        username + "@example.edu",
		Role:         role,
		Active:       true,
	}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func Item(t testing.TB, gdb *gorm.DB, assetTag string, status models.ItemStatus) *models.Item {
	t.Helper()
	it := &models.Item{
		ID:           uuid.NewString(),
		AssetTag:     assetTag,
		SerialNumber: "SN-" + assetTag,
		Type:         "laptop",
		Brand:        "Dell",
		Model:        "Latitude",
		CanLeave:     true,
		Status:       status,
		Condition:    models.ConditionGood,
	}
	if err := gdb.Create(it).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return it
}

func Loan(t testing.TB, gdb *gorm.DB, item *models.Item, borrower *models.User, status models.LoanStatus, expected time.Time) *models.Loan {
	t.Helper()
	l := &models.Loan{
		ID:             uuid.NewString(),
		ItemID:         item.ID,
		BorrowerID:     borrower.ID,
		Status:         status,
		RequestDate:    models.Day(expected.AddDate(0, 0, -7)),
		ExpectedReturn: models.Day(expected),
		Origin:         models.OriginUser,
	}
	if status == models.LoanActive || status == models.LoanReturned {
		d := l.RequestDate
		l.CheckoutDate = &d
		l.ApprovedDate = &d
	}
	if err := gdb.Omit("Item", "Borrower").Create(l).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return l
}
