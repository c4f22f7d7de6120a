package payment

import (
	"time"

	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
)

// InitiatePaymentDTO is the body of POST /bookings/{id}/payments.
type InitiatePaymentDTO struct {
	Method string `json:"method" validate:"required,oneof=QRIS VIRTUAL_ACCOUNT"`
}

type PaymentResponse struct {
	ID                  string     `json:"id"`
	BookingID           string     `json:"booking_id"`
	Status              string     `json:"status"`
	Value               string     `json:"value"`
	Currency            string     `json:"currency"`
	Provider            string     `json:"provider"`
	PaymentMethod       string     `json:"payment_method"`
	ProviderPaymentID   *string    `json:"provider_payment_id,omitempty"`
	ProviderReferenceNo *string    `json:"provider_reference_no,omitempty"`
	BankAccountNo       *string    `json:"bank_account_no,omitempty"`
	BankAccountName     *string    `json:"bank_account_name,omitempty"`
	QRURL               *string    `json:"qr_url,omitempty"`
	FailureReason       *string    `json:"failure_reason,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type PaymentsResponse struct {
	Payments []PaymentResponse `json:"payments"`
}

func ToResponse(p *paymentmodel.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                  p.ID,
		BookingID:           p.BookingID,
		Status:              string(p.Status),
		Value:               p.Value.StringFixed(2),
		Currency:            p.Currency,
		Provider:            p.Provider,
		PaymentMethod:       string(p.PaymentMethod),
		ProviderPaymentID:   p.ProviderPaymentID,
		ProviderReferenceNo: p.ProviderReferenceNo,
		BankAccountNo:       p.BankAccountNo,
		BankAccountName:     p.BankAccountName,
		QRURL:               p.QRURL,
		FailureReason:       p.FailureReason,
		PaidAt:              p.PaidAt,
		RefundedAt:          p.RefundedAt,
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}
