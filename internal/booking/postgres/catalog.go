package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	errs "github.com/frahmantamala/account-rental/internal"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/voucher"
)

// CatalogRepository reads the voucher and rate tables. Both are maintained outside this service.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Resolve(ctx context.Context, code string, now time.Time) (decimal.Decimal, error) {
	var v voucher.Voucher
	err := r.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, errs.ErrInvalidVoucher
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load voucher: %w", err)
	}
	if !v.Usable(now) {
		return decimal.Zero, errs.ErrInvalidVoucher
	}
	return v.Percentage, nil
}

func (r *CatalogRepository) Rate(ctx context.Context, resourceID string, durationType bookingmodel.DurationType) (decimal.Decimal, decimal.Decimal, error) {
	var rate resource.Rate
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND duration_type = ?", resourceID, string(durationType)).
		Take(&rate).Error
	if err == nil {
		return rate.MainValuePerUnit, rate.OthersValuePerUnit, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("load rate: %w", err)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&resource.Resource{}).Where("id = ?", resourceID).Count(&count).Error; err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("load resource: %w", err)
	}
	if count == 0 {
		return decimal.Zero, decimal.Zero, errs.ErrResourceNotFound
	}
	return decimal.Zero, decimal.Zero, errs.ErrUnsupportedDurationType
}
