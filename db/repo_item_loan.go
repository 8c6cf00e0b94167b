package db

import (
	"context"
	"strings"

	"equipment_loaner/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Items

func (r *Repo) CreateItem(ctx context.Context, it *models.Item) error {
	return r.DB.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindItemByID(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).
		Preload("Category").Preload("Location").
		First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// LockItem 锁住该物品行（SQLite 下 FOR UPDATE 被忽略，事务本身已串行）
func (r *Repo) LockItem(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// SetItemStatus 条件更新：只有当前状态等于 from 时才生效
func (r *Repo) SetItemStatus(ctx context.Context, id string, from, to models.ItemStatus, extra map[string]any) error {
	fields := map[string]any{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

func (r *Repo) UpdateItemFields(ctx context.Context, id string, fields map[string]any) error {
	res := r.DB.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&models.Item{ID: id}).Error
}

type ItemFilter struct {
	Status     models.ItemStatus
	Type       string
	Search     string // asset tag / type / brand / model
	CategoryID *uint
	LocationID *uint
	Page       int
	Size       int
}

type PagedItems struct {
	Total int64         `json:"total"`
	Items []models.Item `json:"items"`
}

func (f *ItemFilter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 || f.Size > 200 {
		f.Size = 50
	}
}

func (r *Repo) itemsQuery(ctx context.Context, f ItemFilter, alias string) *gorm.DB {
	col := func(c string) string {
		if alias == "" {
			return c
		}
		return alias + "." + c
	}
	q := r.DB.WithContext(ctx)
	if alias == "" {
		q = q.Model(&models.Item{})
	} else {
		q = q.Table(models.ItemTable + " " + alias)
	}
	if f.Status != "" {
		q = q.Where(col("status")+" = ?", f.Status)
	}
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where(col("type")+" = ?", t)
	}
	if f.CategoryID != nil {
		q = q.Where(col("category_id")+" = ?", *f.CategoryID)
	}
	if f.LocationID != nil {
		q = q.Where(col("location_id")+" = ?", *f.LocationID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER("+col("asset_tag")+") LIKE ? OR LOWER("+col("type")+") LIKE ? OR LOWER("+col("brand")+") LIKE ? OR LOWER("+col("model")+") LIKE ?",
			pat, pat, pat, pat)
	}
	return q
}

// ListItems is the catalogue view.
func (r *Repo) ListItems(ctx context.Context, f ItemFilter) (*PagedItems, error) {
	f.normalize()
	q := r.itemsQuery(ctx, f, "")

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Item
	if err := q.Preload("Category").Preload("Location").
		Order("asset_tag ASC").
		Offset((f.Page - 1) * f.Size).Limit(f.Size).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &PagedItems{Total: total, Items: items}, nil
}

// Loans

func (r *Repo) CreateLoan(ctx context.Context, l *models.Loan) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(l).Error
}

func (r *Repo) FindLoanByID(ctx context.Context, id string) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).
		Preload("Item").Preload("Borrower").
		First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// FindLoanWithStatus 找不到或状态不符都返回 ErrRecordNotFound
func (r *Repo) FindLoanWithStatus(ctx context.Context, id string, status models.LoanStatus) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&l, "id = ? AND status = ?", id, status).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// TransitionLoan applies fields only if the loan is still in status from.
func (r *Repo) TransitionLoan(ctx context.Context, id string, from models.LoanStatus, fields map[string]any) error {
	res := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// CountOpenLoans counts pending/active loans for (item, borrower).
func (r *Repo) CountOpenLoans(ctx context.Context, itemID, borrowerID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("item_id = ? AND borrower_id = ? AND status IN ?", itemID, borrowerID,
			[]models.LoanStatus{models.LoanPending, models.LoanActive}).
		Count(&n).Error
	return n, err
}

// CountItemLoans counts loans of the item, optionally restricted to statuses.
func (r *Repo) CountItemLoans(ctx context.Context, itemID string, statuses ...models.LoanStatus) (int64, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Loan{}).Where("item_id = ?", itemID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Count(&n).Error
	return n, err
}

type LoanFilter struct {
	BorrowerID string
	ItemID     string
	Status     models.LoanStatus
	Search     string // asset tag / borrower name / reason
	Page       int
	Size       int
}

type PagedLoans struct {
	Total int64         `json:"total"`
	Loans []models.Loan `json:"loans"`
}

func (r *Repo) ListLoans(ctx context.Context, f LoanFilter) (*PagedLoans, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 || f.Size > 200 {
		f.Size = 50
	}

	q := r.DB.WithContext(ctx).Table(models.LoanTable + " l")
	if f.BorrowerID != "" {
		q = q.Where("l.borrower_id = ?", f.BorrowerID)
	}
	if f.ItemID != "" {
		q = q.Where("l.item_id = ?", f.ItemID)
	}
	if f.Status != "" {
		q = q.Where("l.status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		q = q.Joins("JOIN "+models.ItemTable+" i ON i.id = l.item_id").
			Joins("JOIN "+models.UserTable+" u ON u.id = l.borrower_id").
			Where("LOWER(i.asset_tag) LIKE ? OR LOWER(u.name) LIKE ? OR LOWER(COALESCE(l.reason, '')) LIKE ?", pat, pat, pat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var ids []string
	if err := q.Order("l.created_at DESC").Order("l.id ASC").
		Offset((f.Page-1)*f.Size).Limit(f.Size).
		Pluck("l.id", &ids).Error; err != nil {
		return nil, err
	}

	loans := make([]models.Loan, 0, len(ids))
	if len(ids) > 0 {
		if err := r.DB.WithContext(ctx).
			Preload("Item").Preload("Borrower").
			Where("id IN ?", ids).
			Order("created_at DESC").Order("id ASC").
			Find(&loans).Error; err != nil {
			return nil, err
		}
	}
	return &PagedLoans{Total: total, Loans: loans}, nil
}
