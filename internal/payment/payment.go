package payment

import (
	"context"
	"net/http"
	"time"

	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
)

type Payment = paymentmodel.Payment

// Outcome is a provider verdict about one payment attempt, whichever channel reported it.
type Outcome struct {
	Status              paymentmodel.Status
	PaidAt              *time.Time
	ProviderReferenceNo string
}

// FinalizeResult reports the rows after finalize. Applied is false when nothing was written.
type FinalizeResult struct {
	Payment *Payment
	Booking *bookingmodel.Booking
	Applied bool
	// BookingChanged is false when the booking had already left HOLD.
	BookingChanged bool
}

// SessionUpdate is what a successful CreateSession leaves on the payment row.
type SessionUpdate struct {
	ProviderPaymentID string
	QRURL             string
	BankAccountNo     string
	BankAccountName   string
	Raw               []byte
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetBooking(ctx context.Context, bookingID string) (*bookingmodel.Booking, error)
	ListByBooking(ctx context.Context, bookingID string) ([]Payment, error)
	// CreatePending locks the booking, requires HOLD and inserts p unless a PENDING or SUCCESS
	// attempt already exists, in which case that attempt is returned and created is false.
	CreatePending(ctx context.Context, p *Payment) (stored *Payment, created bool, err error)
	AttachSession(ctx context.Context, p *Payment, session SessionUpdate) error
	MarkFailed(ctx context.Context, p *Payment, reason string, raw []byte) error
	PendingForBooking(ctx context.Context, bookingID string) (*Payment, error)
	LatestByBankAccountNo(ctx context.Context, bankAccountNo string) (*Payment, error)
	// BankAccountNoPending reports whether a PENDING payment already holds the VA number.
	BankAccountNoPending(ctx context.Context, bankAccountNo string) (bool, error)
	SetInquiryRequestID(ctx context.Context, paymentID, inquiryRequestID string) error
	RecordCallback(ctx context.Context, cb *paymentmodel.Callback) error
	// Finalize applies a terminal outcome to the payment and its booking in one transaction.
	Finalize(ctx context.Context, paymentID string, outcome Outcome, now time.Time) (*FinalizeResult, error)
}

// GatewayAPI is the part of the provider client the orchestrator drives.
type GatewayAPI interface {
	CreateSession(ctx context.Context, method paymentmodel.Method, req gw.SessionRequest) (*gw.Session, error)
	QueryStatus(ctx context.Context, req gw.StatusRequest) (*gw.StatusResult, error)
}

// NotificationVerifier authenticates inbound provider traffic before anything touches storage.
type NotificationVerifier interface {
	VerifyNotification(r *http.Request, body []byte, path string) error
	VerifyLegacyNotification(billNo, statusCode, signature string) error
}

type FinalizerAPI interface {
	Finalize(ctx context.Context, paymentID string, outcome Outcome) (*FinalizeResult, error)
}
