package events

import "time"

type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID           string `json:"payment_id"`
	BookingID           string `json:"booking_id"`
	Amount              string `json:"amount"`
	Method              string `json:"method"`
	ProviderReferenceNo string `json:"provider_reference_no"`
}

func NewPaymentCompletedEvent(paymentID, bookingID, amount, method, providerReferenceNo string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent:           newBase(EventTypePaymentCompleted),
		PaymentID:           paymentID,
		BookingID:           bookingID,
		Amount:              amount,
		Method:              method,
		ProviderReferenceNo: providerReferenceNo,
	}
}

func (e *PaymentCompletedEvent) LogAttrs() []any {
	return []any{"payment_id", e.PaymentID, "booking_id", e.BookingID, "amount", e.Amount}
}

// PaymentFailedEvent covers every terminal status other than SUCCESS.
type PaymentFailedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

func NewPaymentFailedEvent(paymentID, bookingID, status, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: newBase(EventTypePaymentFailed),
		PaymentID: paymentID,
		BookingID: bookingID,
		Status:    status,
		Reason:    reason,
	}
}

func (e *PaymentFailedEvent) LogAttrs() []any {
	return []any{"payment_id", e.PaymentID, "booking_id", e.BookingID, "status", e.Status}
}

// BookingStatusEvent announces that a booking left HOLD, either reserved or released.
type BookingStatusEvent struct {
	BaseEvent
	BookingID  string    `json:"booking_id"`
	ResourceID string    `json:"resource_id"`
	Status     string    `json:"status"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
}

func NewBookingReservedEvent(bookingID, resourceID string, startAt, endAt time.Time) *BookingStatusEvent {
	return newBookingStatusEvent(EventTypeBookingReserved, bookingID, resourceID, "RESERVED", startAt, endAt)
}

func NewBookingReleasedEvent(bookingID, resourceID, status string, startAt, endAt time.Time) *BookingStatusEvent {
	return newBookingStatusEvent(EventTypeBookingReleased, bookingID, resourceID, status, startAt, endAt)
}

func newBookingStatusEvent(eventType, bookingID, resourceID, status string, startAt, endAt time.Time) *BookingStatusEvent {
	return &BookingStatusEvent{
		BaseEvent:  newBase(eventType),
		BookingID:  bookingID,
		ResourceID: resourceID,
		Status:     status,
		StartAt:    startAt,
		EndAt:      endAt,
	}
}

func (e *BookingStatusEvent) LogAttrs() []any {
	return []any{"booking_id", e.BookingID, "resource_id", e.ResourceID, "status", e.Status}
}
