// db/repo_users_admin.go
package db

import (
	"context"

	"equipment_loaner/models"
)

func (r *Repo) SetUserActive(ctx context.Context, userID string, active bool) error {
	return r.UpdateUserFields(ctx, userID, map[string]any{"active": active})
}

// CountAdmins 只统计启用中的管理员
func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ? AND active = ?", models.RoleAdmin, true).
		Count(&n).Error
	return n, err
}

// CountOpenLoansForUser counts pending and active loans the user borrows.
func (r *Repo) CountOpenLoansForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.Loan{}).
		Where("borrower_id = ? AND status IN ?", userID, []models.LoanStatus{models.LoanPending, models.LoanActive}).
		Count(&n).Error
	return n, err
}
