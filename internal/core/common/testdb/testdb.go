// Package testdb opens throwaway sqlite databases carrying the service schema.
package testdb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/voucher"
)

// Open returns a private in-memory database. A single connection makes sqlite behave like the row
// locks of postgres: transactions run one at a time.
func Open() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&resource.Resource{},
		&resource.Rate{},
		&voucher.Voucher{},
		&bookingmodel.Booking{},
		&paymentmodel.Payment{},
		&paymentmodel.Callback{},
	)
	if err != nil {
		return nil, err
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_pending_bank_account_no
		ON payments (bank_account_no) WHERE status = 'PENDING' AND bank_account_no IS NOT NULL`).Error
	if err != nil {
		return nil, err
	}
	return db, nil
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SeedResource inserts an active resource with hourly and daily rates.
func SeedResource(db *gorm.DB, id string, hourly, daily decimal.Decimal) error {
	if err := db.Create(&resource.Resource{ID: id, Name: "account " + id, IsActive: true}).Error; err != nil {
		return err
	}
	rates := []resource.Rate{
		{ResourceID: id, DurationType: string(bookingmodel.DurationHourly), MainValuePerUnit: hourly, OthersValuePerUnit: decimal.Zero},
		{ResourceID: id, DurationType: string(bookingmodel.DurationDaily), MainValuePerUnit: daily, OthersValuePerUnit: decimal.Zero},
	}
	return db.Create(&rates).Error
}
