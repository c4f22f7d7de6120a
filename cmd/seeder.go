package cmd

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/voucher"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with rentable accounts, their rates and a few vouchers for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := openGorm(db, cfg.Environment)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if err := seedCatalog(gdb, clearData); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		fmt.Println("Catalog seeded successfully")
	},
}

type seedAccount struct {
	ID     string
	Name   string
	Hourly int64
	Daily  int64
	Others int64
}

var seedAccounts = []seedAccount{
	{ID: "netflix-premium-01", Name: "Netflix Premium #1", Hourly: 5000, Daily: 35000, Others: 2500},
	{ID: "netflix-premium-02", Name: "Netflix Premium #2", Hourly: 5000, Daily: 35000, Others: 2500},
	{ID: "spotify-family-01", Name: "Spotify Family #1", Hourly: 2000, Daily: 15000, Others: 1000},
	{ID: "chatgpt-plus-01", Name: "ChatGPT Plus #1", Hourly: 8000, Daily: 60000, Others: 0},
}

var seedVouchers = []voucher.Voucher{
	{Code: "WELCOME10", Percentage: decimal.RequireFromString("0.10"), IsActive: true},
	{Code: "WEEKEND25", Percentage: decimal.RequireFromString("0.25"), IsActive: true},
	{Code: "RETIRED50", Percentage: decimal.RequireFromString("0.50"), IsActive: false},
}

// seedCatalog upserts the sample catalog. With clear set it first wipes bookings and payments too.
func seedCatalog(db *gorm.DB, clear bool) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if clear {
			// children first
			for _, model := range []interface{}{
				&paymentmodel.Callback{},
				&paymentmodel.Payment{},
				&bookingmodel.Booking{},
				&resource.Rate{},
				&voucher.Voucher{},
				&resource.Resource{},
			} {
				if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
					return fmt.Errorf("clear %T: %w", model, err)
				}
			}
		}

		for _, a := range seedAccounts {
			res := resource.Resource{ID: a.ID, Name: a.Name, IsActive: true}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&res).Error; err != nil {
				return fmt.Errorf("insert resource %s: %w", a.ID, err)
			}

			rates := []resource.Rate{
				{ResourceID: a.ID, DurationType: string(bookingmodel.DurationHourly), MainValuePerUnit: decimal.NewFromInt(a.Hourly), OthersValuePerUnit: decimal.NewFromInt(a.Others)},
				{ResourceID: a.ID, DurationType: string(bookingmodel.DurationDaily), MainValuePerUnit: decimal.NewFromInt(a.Daily), OthersValuePerUnit: decimal.NewFromInt(a.Others)},
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "resource_id"}, {Name: "duration_type"}},
				DoUpdates: clause.AssignmentColumns([]string{"main_value_per_unit", "others_value_per_unit"}),
			}).Create(&rates).Error
			if err != nil {
				return fmt.Errorf("upsert rates for %s: %w", a.ID, err)
			}
			fmt.Printf("Seeded account: %s\n", a.ID)
		}

		for i := range seedVouchers {
			v := seedVouchers[i]
			// is_active defaults to true in the schema, so write the zero value explicitly
			err := tx.Select("*").Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"percentage", "is_active"}),
			}).Create(&v).Error
			if err != nil {
				return fmt.Errorf("upsert voucher %s: %w", v.Code, err)
			}
		}
		return nil
	})
}
