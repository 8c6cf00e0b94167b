package db

import (
	"context"
	"fmt"

	"equipment_loaner/models"

	"github.com/google/uuid"
)

func (r *Repo) AppendMaintenanceLog(ctx context.Context, entry *models.MaintenanceLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert maintenance log: %w", err)
	}
	return nil
}

// ListMaintenanceLogs 最新在前
func (r *Repo) ListMaintenanceLogs(ctx context.Context, itemID string) ([]models.MaintenanceLog, error) {
	var logs []models.MaintenanceLog
	err := r.DB.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").Order("id ASC").
		Find(&logs).Error
	return logs, err
}

func (r *Repo) CountMaintenanceLogs(ctx context.Context, itemID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.MaintenanceLog{}).Where("item_id = ?", itemID).Count(&n).Error
	return n, err
}
