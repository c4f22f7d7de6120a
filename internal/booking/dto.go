package booking

import (
	"time"

	"github.com/shopspring/decimal"

	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
)

// CreateHoldRequest carries the frozen prices; callers resolve them before creating the hold.
type CreateHoldRequest struct {
	ResourceID         string
	ActorID            *string
	BaseDurationUnit   int
	BaseDurationType   bookingmodel.DurationType
	Quantity           int
	MainValuePerUnit   decimal.Decimal
	OthersValuePerUnit decimal.Decimal
	VoucherCode        *string
	StartAt            *time.Time
}

// CreateBookingDTO is the customer-facing request body.
type CreateBookingDTO struct {
	ResourceID       string     `json:"resource_id" validate:"required"`
	BaseDurationUnit int        `json:"base_duration_unit" validate:"required,min=1,max=720"`
	BaseDurationType string     `json:"base_duration_type" validate:"required"`
	Quantity         int        `json:"quantity" validate:"required,min=1,max=365"`
	VoucherCode      *string    `json:"voucher_code,omitempty" validate:"omitempty,max=64"`
	StartAt          *time.Time `json:"start_at,omitempty"`
}

type BookingResponse struct {
	ID                 string     `json:"id"`
	ResourceID         string     `json:"resource_id"`
	ActorID            *string    `json:"actor_id,omitempty"`
	Status             string     `json:"status"`
	BaseDurationUnit   int        `json:"base_duration_unit"`
	BaseDurationType   string     `json:"base_duration_type"`
	Quantity           int        `json:"quantity"`
	StartAt            time.Time  `json:"start_at"`
	EndAt              time.Time  `json:"end_at"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
	Immediate          bool       `json:"immediate"`
	MainValuePerUnit   string     `json:"main_value_per_unit"`
	OthersValuePerUnit string     `json:"others_value_per_unit"`
	VoucherCode        *string    `json:"voucher_code,omitempty"`
	VoucherPercentage  string     `json:"voucher_percentage"`
	MainValue          string     `json:"main_value"`
	OthersValue        string     `json:"others_value"`
	Discount           string     `json:"discount"`
	TotalValue         string     `json:"total_value"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type BookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type SweepResponse struct {
	Scanned   int `json:"scanned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func ToResponse(b *Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		ResourceID:         b.ResourceID,
		ActorID:            b.ActorID,
		Status:             string(b.Status),
		BaseDurationUnit:   b.BaseDurationUnit,
		BaseDurationType:   string(b.BaseDurationType),
		Quantity:           b.Quantity,
		StartAt:            b.StartAt,
		EndAt:              b.EndAt,
		ExpiredAt:          b.ExpiredAt,
		Immediate:          b.Immediate,
		MainValuePerUnit:   b.MainValuePerUnit.StringFixed(2),
		OthersValuePerUnit: b.OthersValuePerUnit.StringFixed(2),
		VoucherCode:        b.VoucherCode,
		VoucherPercentage:  b.VoucherPercentage.StringFixed(4),
		MainValue:          b.MainValue.StringFixed(2),
		OthersValue:        b.OthersValue.StringFixed(2),
		Discount:           b.Discount.StringFixed(2),
		TotalValue:         b.TotalValue.StringFixed(2),
		Version:            b.Version,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}
