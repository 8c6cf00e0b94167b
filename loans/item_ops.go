package loans

import (
	"context"
	"strings"
	"time"

	"equipment_loaner/apperr"
	"equipment_loaner/availability"
	"equipment_loaner/db"
	"equipment_loaner/models"
	"equipment_loaner/policy"

	"github.com/google/uuid"
)

const msgItemTaken = "asset tag, serial number or sticker number already in use"

type ItemInput struct {
	AssetTag         string             `json:"assetTag" validate:"required,max=120"`
	SerialNumber     string             `json:"serialNumber" validate:"required,max=120"`
	StickerNumber    *string            `json:"stickerNumber" validate:"omitempty,max=120"`
	Type             string             `json:"type" validate:"required,max=120"`
	Brand            string             `json:"brand" validate:"max=120"`
	Model            string             `json:"model" validate:"max=120"`
	CategoryID       *uint              `json:"categoryId"`
	LocationID       *uint              `json:"locationId"`
	PurchaseDate     *time.Time         `json:"purchaseDate"`
	PurchasePrice    *float64           `json:"purchasePrice" validate:"omitempty,gte=0"`
	WarrantyExpiry   *time.Time         `json:"warrantyExpiry"`
	Specifications   string             `json:"specifications"`
	CanLeaveBuilding bool               `json:"canLeaveBuilding"`
	Status           *models.ItemStatus `json:"status" validate:"omitempty,item_status"`
	Condition        *models.Condition  `json:"condition" validate:"omitempty,item_condition"`
	Notes            string             `json:"notes"`
}

// ItemPatch only touches non-nil fields.
type ItemPatch struct {
	AssetTag         *string            `json:"assetTag" validate:"omitempty,min=1,max=120"`
	SerialNumber     *string            `json:"serialNumber" validate:"omitempty,min=1,max=120"`
	StickerNumber    *string            `json:"stickerNumber" validate:"omitempty,max=120"`
	Type             *string            `json:"type" validate:"omitempty,min=1,max=120"`
	Brand            *string            `json:"brand" validate:"omitempty,max=120"`
	Model            *string            `json:"model" validate:"omitempty,max=120"`
	CategoryID       *uint              `json:"categoryId"`
	LocationID       *uint              `json:"locationId"`
	PurchaseDate     *time.Time         `json:"purchaseDate"`
	PurchasePrice    *float64           `json:"purchasePrice" validate:"omitempty,gte=0"`
	WarrantyExpiry   *time.Time         `json:"warrantyExpiry"`
	Specifications   *string            `json:"specifications"`
	CanLeaveBuilding *bool              `json:"canLeaveBuilding"`
	Status           *models.ItemStatus `json:"status" validate:"omitempty,item_status"`
	Condition        *models.Condition  `json:"condition" validate:"omitempty,item_condition"`
	Notes            *string            `json:"notes"`
}

type MaintenanceInput struct {
	Notes           string   `json:"notes" validate:"max=4000"`
	MaintenanceType string   `json:"maintenanceType" validate:"max=80"`
	Cost            *float64 `json:"cost" validate:"omitempty,gte=0"`
}

func (e *Engine) checkLookups(ctx context.Context, tx *db.Repo, categoryID, locationID *uint) error {
	if categoryID != nil {
		ok, err := tx.CategoryExists(ctx, *categoryID)
		if err != nil {
			return apperr.Internal(err)
		}
		if !ok {
			return apperr.Validation("unknown category", map[string]string{"categoryId": "exists"})
		}
	}
	if locationID != nil {
		ok, err := tx.LocationExists(ctx, *locationID)
		if err != nil {
			return apperr.Internal(err)
		}
		if !ok {
			return apperr.Validation("unknown location", map[string]string{"locationId": "exists"})
		}
	}
	return nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.Day(*t)
	return &d
}

func (e *Engine) CreateItem(ctx context.Context, actor policy.Actor, in ItemInput) (*models.Item, error) {
	if err := policy.Authorize(actor, policy.OpManageItems); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}

	item := &models.Item{
		ID:            uuid.NewString(),
		AssetTag:      strings.TrimSpace(in.AssetTag),
		SerialNumber:  strings.TrimSpace(in.SerialNumber),
		StickerNumber: trimOptional(in.StickerNumber),
		Type:          strings.TrimSpace(in.Type),
		Brand:         in.Brand,
		Model:         in.Model,
		CategoryID:    in.CategoryID,
		LocationID:    in.LocationID,
		PurchaseDate:  dayPtr(in.PurchaseDate),
		PurchasePrice: in.PurchasePrice,
		WarrantyUntil: dayPtr(in.WarrantyExpiry),
		Specs:         in.Specifications,
		CanLeave:      in.CanLeaveBuilding,
		Status:        models.ItemAvailable,
		Condition:     models.ConditionGood,
		Notes:         in.Notes,
	}
	if in.Status != nil {
		if err := availability.CheckEdit(models.ItemAvailable, *in.Status); err != nil {
			return nil, err
		}
		item.Status = *in.Status
	}
	if in.Condition != nil {
		item.Condition = *in.Condition
	}

	var out *models.Item
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		if err := e.checkLookups(ctx, tx, in.CategoryID, in.LocationID); err != nil {
			return err
		}
		if err := tx.CreateItem(ctx, item); err != nil {
			return persistErr(err, msgItemTaken)
		}
		var err error
		out, err = tx.FindItemByID(ctx, item.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "item create", "asset_tag", in.AssetTag, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "item created", "item_id", out.ID, "actor_id", actor.ID)
}

// UpdateItem edits item fields. Status may not be moved into or out of loaned
// or maintenance; those go through the loan and maintenance operations.
func (e *Engine) UpdateItem(ctx context.Context, actor policy.Actor, itemID string, p ItemPatch) (*models.Item, error) {
	if err := policy.Authorize(actor, policy.OpManageItems); err != nil {
		return nil, err
	}
	if err := knownID(itemID, msgItemNotFound); err != nil {
		return nil, err
	}
	if err := e.check(p); err != nil {
		return nil, err
	}

	var out *models.Item
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return notFound(err, msgItemNotFound)
		}
		if p.Status != nil {
			if err := availability.CheckEdit(item.Status, *p.Status); err != nil {
				return err
			}
		}
		if err := e.checkLookups(ctx, tx, p.CategoryID, p.LocationID); err != nil {
			return err
		}

		fields := itemPatchFields(p)
		if len(fields) > 0 {
			if err := tx.UpdateItemFields(ctx, item.ID, fields); err != nil {
				return persistErr(err, msgItemTaken)
			}
		}
		out, err = tx.FindItemByID(ctx, item.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "item update", "item_id", itemID, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "item updated", "item_id", itemID, "actor_id", actor.ID)
}

func itemPatchFields(p ItemPatch) map[string]any {
	f := map[string]any{}
	set := func(col string, ok bool, v any) {
		if ok {
			f[col] = v
		}
	}
	if p.AssetTag != nil {
		f["asset_tag"] = strings.TrimSpace(*p.AssetTag)
	}
	if p.SerialNumber != nil {
		f["serial_number"] = strings.TrimSpace(*p.SerialNumber)
	}
	if p.StickerNumber != nil {
		// 空字符串表示清除
		f["sticker_number"] = trimOptional(p.StickerNumber)
	}
	if p.Type != nil {
		f["type"] = strings.TrimSpace(*p.Type)
	}
	set("brand", p.Brand != nil, deref(p.Brand))
	set("model", p.Model != nil, deref(p.Model))
	set("category_id", p.CategoryID != nil, p.CategoryID)
	set("location_id", p.LocationID != nil, p.LocationID)
	set("purchase_date", p.PurchaseDate != nil, dayPtr(p.PurchaseDate))
	set("purchase_price", p.PurchasePrice != nil, p.PurchasePrice)
	set("warranty_expiry", p.WarrantyExpiry != nil, dayPtr(p.WarrantyExpiry))
	set("specifications", p.Specifications != nil, deref(p.Specifications))
	if p.CanLeaveBuilding != nil {
		f["can_leave_building"] = *p.CanLeaveBuilding
	}
	if p.Status != nil {
		f["status"] = *p.Status
	}
	if p.Condition != nil {
		f["condition"] = *p.Condition
	}
	set("notes", p.Notes != nil, deref(p.Notes))
	return f
}

// trimOptional maps a blank optional string to NULL.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DeleteItem removes an item with no history. An item that was ever loaned
// or serviced is retired instead, so its history stays intact. Open loans
// block both.
func (e *Engine) DeleteItem(ctx context.Context, actor policy.Actor, itemID string) (retired bool, err error) {
	if err := policy.Authorize(actor, policy.OpDeleteItem); err != nil {
		return false, err
	}
	if err := knownID(itemID, msgItemNotFound); err != nil {
		return false, err
	}

	err = e.repo.InTx(ctx, func(tx *db.Repo) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return notFound(err, msgItemNotFound)
		}
		open, err := tx.CountItemLoans(ctx, item.ID, models.LoanPending, models.LoanActive)
		if err != nil {
			return apperr.Internal(err)
		}
		if open > 0 || item.Status == models.ItemLoaned {
			return apperr.Conflict("item has open loans")
		}

		history, err := tx.CountItemLoans(ctx, item.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		logs, err := tx.CountMaintenanceLogs(ctx, item.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		if history+logs == 0 {
			return apperr.Internal(tx.DeleteItem(ctx, item.ID))
		}

		retired = true
		if item.Status == models.ItemRetired {
			return nil
		}
		if err := tx.SetItemStatus(ctx, item.ID, item.Status, models.ItemRetired, nil); err != nil {
			return staleItem(err)
		}
		return nil
	})
	if err != nil {
		return false, e.finish(err, "item delete", "item_id", itemID, "actor_id", actor.ID)
	}
	return retired, e.finish(nil, "item deleted", "item_id", itemID, "actor_id", actor.ID, "retired", retired)
}

// MarkMaintenance takes an item out of circulation and appends a started log.
func (e *Engine) MarkMaintenance(ctx context.Context, actor policy.Actor, itemID string, in MaintenanceInput) (*models.Item, error) {
	if err := policy.Authorize(actor, policy.OpMarkMaintenance); err != nil {
		return nil, err
	}
	if err := knownID(itemID, msgItemNotFound); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}

	var out *models.Item
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return notFound(err, msgItemNotFound)
		}
		switch item.Status {
		case models.ItemLoaned:
			return apperr.Conflict("item is on loan; return it first")
		case models.ItemMaintenance:
			return apperr.Conflict("item is already in maintenance")
		}

		if err := tx.SetItemStatus(ctx, item.ID, item.Status, models.ItemMaintenance, nil); err != nil {
			return staleItem(err)
		}
		if err := tx.AppendMaintenanceLog(ctx, &models.MaintenanceLog{
			ItemID:          item.ID,
			PerformedBy:     actor.ID,
			Action:          models.MaintenanceStarted,
			MaintenanceType: strings.TrimSpace(in.MaintenanceType),
			Description:     strings.TrimSpace(in.Notes),
			Cost:            in.Cost,
			MaintenanceDate: e.Today(),
		}); err != nil {
			return apperr.Internal(err)
		}
		out, err = tx.FindItemByID(ctx, item.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "item maintenance", "item_id", itemID, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "item sent to maintenance", "item_id", itemID, "actor_id", actor.ID)
}

// MarkAvailable ends maintenance and appends a completed log.
func (e *Engine) MarkAvailable(ctx context.Context, actor policy.Actor, itemID string, in MaintenanceInput) (*models.Item, error) {
	if err := policy.Authorize(actor, policy.OpMarkMaintenance); err != nil {
		return nil, err
	}
	if err := knownID(itemID, msgItemNotFound); err != nil {
		return nil, err
	}
	if err := e.check(in); err != nil {
		return nil, err
	}

	var out *models.Item
	err := e.repo.InTx(ctx, func(tx *db.Repo) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return notFound(err, msgItemNotFound)
		}
		if item.Status != models.ItemMaintenance {
			return apperr.Conflict("item is not in maintenance")
		}
		if err := tx.SetItemStatus(ctx, item.ID, models.ItemMaintenance, models.ItemAvailable, nil); err != nil {
			return staleItem(err)
		}
		if err := tx.AppendMaintenanceLog(ctx, &models.MaintenanceLog{
			ItemID:          item.ID,
			PerformedBy:     actor.ID,
			Action:          models.MaintenanceCompleted,
			MaintenanceType: strings.TrimSpace(in.MaintenanceType),
			Description:     strings.TrimSpace(in.Notes),
			Cost:            in.Cost,
			MaintenanceDate: e.Today(),
		}); err != nil {
			return apperr.Internal(err)
		}
		out, err = tx.FindItemByID(ctx, item.ID)
		return apperr.Internal(err)
	})
	if err != nil {
		return nil, e.finish(err, "item available", "item_id", itemID, "actor_id", actor.ID)
	}
	return out, e.finish(nil, "item back in service", "item_id", itemID, "actor_id", actor.ID)
}
