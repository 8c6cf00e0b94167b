package models

import "time"

const (
	ItemTable     = "eq_items"
	CategoryTable = "eq_categories"
	LocationTable = "eq_locations"
)

type ItemStatus string

const (
	ItemAvailable   ItemStatus = "available"
	ItemLoaned      ItemStatus = "loaned"
	ItemMaintenance ItemStatus = "maintenance"
	ItemFaulty      ItemStatus = "faulty"
	ItemRetired     ItemStatus = "retired"
)

// ItemStatuses in display order.
var ItemStatuses = []ItemStatus{ItemAvailable, ItemLoaned, ItemMaintenance, ItemFaulty, ItemRetired}

func (s ItemStatus) Valid() bool {
	for _, v := range ItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	// 仅用于归还记录，物品本身不会是 damaged
	ConditionDamaged Condition = "damaged"
)

// ValidItemCondition reports whether c may be stored on an item.
func (c Condition) ValidItemCondition() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// ValidReturnCondition reports whether c may be recorded on a return.
func (c Condition) ValidReturnCondition() bool {
	return c == ConditionDamaged || c.ValidItemCondition()
}

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:120;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Category) TableName() string { return CategoryTable }

type Location struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:120;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Address     string    `gorm:"size:255" json:"address,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Location) TableName() string { return LocationTable }

type Item struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	AssetTag      string     `gorm:"size:120;uniqueIndex;not null" json:"assetTag"`
	SerialNumber  string     `gorm:"size:120;uniqueIndex;not null" json:"serialNumber"`
	StickerNumber *string    `gorm:"size:120;uniqueIndex" json:"stickerNumber,omitempty"`
	Type          string     `gorm:"size:120;index;not null" json:"type"`
	Brand         string     `gorm:"size:120" json:"brand"`
	Model         string     `gorm:"size:120" json:"model"`
	CategoryID    *uint      `gorm:"index" json:"categoryId,omitempty"`
	LocationID    *uint      `gorm:"index" json:"locationId,omitempty"`
	Category      *Category  `json:"category,omitempty"`
	Location      *Location  `json:"location,omitempty"`
	PurchaseDate  *time.Time `gorm:"type:date" json:"purchaseDate,omitempty"`
	PurchasePrice *float64   `json:"purchasePrice,omitempty"`
	WarrantyUntil *time.Time `gorm:"column:warranty_expiry;type:date" json:"warrantyExpiry,omitempty"`
	Specs         string     `gorm:"column:specifications;type:text" json:"specifications,omitempty"`
	CanLeave      bool       `gorm:"column:can_leave_building;not null" json:"canLeaveBuilding"`

	// 生命周期：available/loaned/maintenance/faulty/retired
	Status    ItemStatus `gorm:"size:20;index;not null;default:'available';check:chk_item_status,status IN ('available','loaned','maintenance','faulty','retired')" json:"status"`
	Condition Condition  `gorm:"size:20;not null;default:'good';check:chk_item_condition,condition IN ('excellent','good','fair','poor')" json:"condition"`
	Notes     string     `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Item) TableName() string { return ItemTable }
