package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	errs "github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListResources(ctx context.Context) ([]resource.Resource, []resource.Rate, error) {
	var rows []resource.Resource
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("list resources: %w", err)
	}
	if len(rows) == 0 {
		return rows, nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var rates []resource.Rate
	if err := r.db.WithContext(ctx).Where("resource_id IN ?", ids).Find(&rates).Error; err != nil {
		return nil, nil, fmt.Errorf("list rates: %w", err)
	}
	return rows, rates, nil
}

func (r *CatalogRepository) GetResource(ctx context.Context, id string) (*resource.Resource, []resource.Rate, error) {
	var row resource.Resource
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, errs.ErrResourceNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load resource: %w", err)
	}

	var rates []resource.Rate
	if err := r.db.WithContext(ctx).Where("resource_id = ?", id).Find(&rates).Error; err != nil {
		return nil, nil, fmt.Errorf("load rates: %w", err)
	}
	return &row, rates, nil
}
