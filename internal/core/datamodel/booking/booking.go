package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusHold      Status = "HOLD"
	StatusReserved  Status = "RESERVED"
	StatusExpired   Status = "EXPIRED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Blocking reports whether a booking in this status occupies its time window.
func (s Status) Blocking() bool {
	return s == StatusHold || s == StatusReserved
}

type DurationType string

const (
	DurationHourly DurationType = "HOURLY"
	DurationDaily  DurationType = "DAILY"
)

type Booking struct {
	ID                 string          `gorm:"column:id;primaryKey"`
	ResourceID         string          `gorm:"column:resource_id;not null;index:idx_bookings_resource_window"`
	ActorID            *string         `gorm:"column:actor_id;index"`
	Status             Status          `gorm:"column:status;not null"`
	BaseDurationUnit   int             `gorm:"column:base_duration_unit;not null"`
	BaseDurationType   DurationType    `gorm:"column:base_duration_type;not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	StartAt            time.Time       `gorm:"column:start_at;not null;index:idx_bookings_resource_window"`
	EndAt              time.Time       `gorm:"column:end_at;not null;index:idx_bookings_resource_window"`
	ExpiredAt          *time.Time      `gorm:"column:expired_at"`
	Immediate          bool            `gorm:"column:immediate;not null;default:false"`
	MainValuePerUnit   decimal.Decimal `gorm:"column:main_value_per_unit;type:decimal(20,2);not null"`
	OthersValuePerUnit decimal.Decimal `gorm:"column:others_value_per_unit;type:decimal(20,2);not null"`
	VoucherCode        *string         `gorm:"column:voucher_code"`
	VoucherPercentage  decimal.Decimal `gorm:"column:voucher_percentage;type:decimal(5,4);not null"`
	MainValue          decimal.Decimal `gorm:"column:main_value;type:decimal(20,2);not null"`
	OthersValue        decimal.Decimal `gorm:"column:others_value;type:decimal(20,2);not null"`
	Discount           decimal.Decimal `gorm:"column:discount;type:decimal(20,2);not null"`
	TotalValue         decimal.Decimal `gorm:"column:total_value;type:decimal(20,2);not null"`
	Version            int64           `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// Duration is the rented span, unit × quantity of the base duration type.
func (b *Booking) Duration() time.Duration {
	return DurationOf(b.BaseDurationUnit, b.BaseDurationType, b.Quantity)
}

// DurationOf returns zero for an unknown duration type.
func DurationOf(unit int, durationType DurationType, quantity int) time.Duration {
	n := time.Duration(unit * quantity)
	switch durationType {
	case DurationHourly:
		return n * time.Hour
	case DurationDaily:
		return n * 24 * time.Hour
	default:
		return 0
	}
}
