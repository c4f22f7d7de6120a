package resource

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resource is a rentable account. Its row doubles as the lock object for hold creation.
type Resource struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Resource) TableName() string {
	return "resources"
}

// Rate is the per-unit price of a resource for one duration type.
type Rate struct {
	ResourceID         string          `gorm:"column:resource_id;primaryKey"`
	DurationType       string          `gorm:"column:duration_type;primaryKey"`
	MainValuePerUnit   decimal.Decimal `gorm:"column:main_value_per_unit;type:decimal(20,2);not null"`
	OthersValuePerUnit decimal.Decimal `gorm:"column:others_value_per_unit;type:decimal(20,2);not null"`
}

func (Rate) TableName() string {
	return "resource_rates"
}
