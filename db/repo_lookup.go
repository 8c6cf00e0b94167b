package db

import (
	"context"

	"equipment_loaner/models"
)

func (r *Repo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cs []models.Category
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&cs).Error
	return cs, err
}

func (r *Repo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) ListLocations(ctx context.Context) ([]models.Location, error) {
	var ls []models.Location
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&ls).Error
	return ls, err
}

func (r *Repo) CreateLocation(ctx context.Context, l *models.Location) error {
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *Repo) CategoryExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *Repo) LocationExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Location{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}
