package voucher

import (
	"time"

	"github.com/shopspring/decimal"
)

type Voucher struct {
	Code       string          `gorm:"column:code;primaryKey"`
	Percentage decimal.Decimal `gorm:"column:percentage;type:decimal(5,4);not null"`
	IsActive   bool            `gorm:"column:is_active;not null;default:true"`
	ValidUntil *time.Time      `gorm:"column:valid_until"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
}

func (Voucher) TableName() string {
	return "vouchers"
}

func (v *Voucher) Usable(now time.Time) bool {
	if !v.IsActive {
		return false
	}
	return v.ValidUntil == nil || v.ValidUntil.After(now)
}
