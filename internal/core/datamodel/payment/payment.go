package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	StatusRefunded  Status = "REFUNDED"
)

func (s Status) Terminal() bool {
	return s != StatusPending
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusCancelled, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// BookingStatus maps a payment outcome onto the booking it pays for.
func (s Status) BookingStatus() bookingmodel.Status {
	switch s {
	case StatusSuccess:
		return bookingmodel.StatusReserved
	case StatusPending:
		return bookingmodel.StatusHold
	case StatusCancelled:
		return bookingmodel.StatusCancelled
	case StatusExpired:
		return bookingmodel.StatusExpired
	default:
		// FAILED and REFUNDED
		return bookingmodel.StatusFailed
	}
}

type Method string

const (
	MethodQRIS           Method = "QRIS"
	MethodVirtualAccount Method = "VIRTUAL_ACCOUNT"
)

func (m Method) Valid() bool {
	return m == MethodQRIS || m == MethodVirtualAccount
}

type Payment struct {
	ID                  string          `gorm:"column:id;primaryKey"`
	BookingID           string          `gorm:"column:booking_id;not null;index"`
	Status              Status          `gorm:"column:status;not null"`
	Value               decimal.Decimal `gorm:"column:value;type:decimal(20,2);not null"`
	Currency            string          `gorm:"column:currency;not null"`
	Provider            string          `gorm:"column:provider;not null"`
	PaymentMethod       Method          `gorm:"column:payment_method;not null"`
	ProviderPaymentID   *string         `gorm:"column:provider_payment_id"`
	ProviderReferenceNo *string         `gorm:"column:provider_reference_no"`
	BankAccountNo       *string         `gorm:"column:bank_account_no;index"`
	BankAccountName     *string         `gorm:"column:bank_account_name"`
	QRURL               *string         `gorm:"column:qr_url"`
	InquiryRequestID    *string         `gorm:"column:inquiry_request_id"`
	FailureReason       *string         `gorm:"column:failure_reason"`
	GatewayResponse     datatypes.JSON  `gorm:"column:gateway_response"`
	PaidAt              *time.Time      `gorm:"column:paid_at"`
	RefundedAt          *time.Time      `gorm:"column:refunded_at"`
	Version             int64           `gorm:"column:version;not null;default:1"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

type CallbackSource string

const (
	CallbackSourceWebhook      CallbackSource = "WEBHOOK"
	CallbackSourceLegacyNotify CallbackSource = "LEGACY_NOTIFY"
	CallbackSourceVAInquiry    CallbackSource = "VA_INQUIRY"
	CallbackSourceVAPayment    CallbackSource = "VA_PAYMENT"
)

// Callback is the audit row for a verified inbound provider notification.
type Callback struct {
	ID        string         `gorm:"column:id;primaryKey"`
	PaymentID *string        `gorm:"column:payment_id;index"`
	Source    CallbackSource `gorm:"column:source;not null"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (Callback) TableName() string {
	return "payment_callbacks"
}
