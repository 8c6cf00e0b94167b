package models

import "time"

const MaintenanceLogTable = "eq_maintenance_logs"

type MaintenanceAction string

const (
	MaintenanceStarted   MaintenanceAction = "started"
	MaintenanceCompleted MaintenanceAction = "completed"
)

// MaintenanceLog 维修审计记录，只追加不修改
type MaintenanceLog struct {
	ID              string            `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID          string            `gorm:"type:uuid;index;not null" json:"itemId"`
	PerformedBy     string            `gorm:"type:uuid;not null" json:"performedBy"`
	Action          MaintenanceAction `gorm:"size:20;not null;check:chk_maint_action,action IN ('started','completed')" json:"action"`
	MaintenanceType string            `gorm:"size:80" json:"maintenanceType,omitempty"`
	Description     string            `gorm:"type:text" json:"description,omitempty"`
	Cost            *float64          `json:"cost,omitempty"`
	MaintenanceDate time.Time         `gorm:"type:date;not null" json:"maintenanceDate"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func (MaintenanceLog) TableName() string { return MaintenanceLogTable }
