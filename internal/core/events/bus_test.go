package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/account-rental/internal/core/events"
)

// syncBuffer lets subscriber goroutines and the test share one log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ = Describe("EventBus", func() {
	var (
		logs *syncBuffer
		bus  *events.EventBus
		ctx  context.Context
	)

	BeforeEach(func() {
		logs = &syncBuffer{}
		bus = events.NewEventBus(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
		ctx = context.Background()
	})

	Describe("PublishSync", func() {
		It("runs every subscriber and joins their errors", func() {
			errFirst := errors.New("ledger unavailable")
			var calls []string
			bus.Subscribe(events.EventTypePaymentCompleted, func(context.Context, events.Event) error {
				calls = append(calls, "ledger")
				return errFirst
			})
			bus.Subscribe(events.EventTypePaymentCompleted, func(context.Context, events.Event) error {
				calls = append(calls, "mailer")
				return nil
			})

			err := bus.PublishSync(ctx, events.NewPaymentCompletedEvent("pay-1", "book-1", "75000.00", "QRIS", "REF-1"))
			Expect(err).To(MatchError(errFirst))
			Expect(err.Error()).To(ContainSubstring(events.EventTypePaymentCompleted))
			Expect(calls).To(Equal([]string{"ledger", "mailer"}))
		})

		It("logs the payment and booking a failing subscriber was handling", func() {
			bus.Subscribe(events.EventTypePaymentFailed, func(context.Context, events.Event) error {
				return errors.New("boom")
			})

			Expect(bus.PublishSync(ctx, events.NewPaymentFailedEvent("pay-9", "book-9", "EXPIRED", "hold lapsed"))).ToNot(Succeed())
			Expect(logs.String()).To(ContainSubstring(`"payment_id":"pay-9"`))
			Expect(logs.String()).To(ContainSubstring(`"booking_id":"book-9"`))
			Expect(logs.String()).To(ContainSubstring(`"status":"EXPIRED"`))
		})

		It("turns a subscriber panic into an error", func() {
			bus.Subscribe(events.EventTypeBookingReserved, func(context.Context, events.Event) error {
				panic("nil resource")
			})

			start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			err := bus.PublishSync(ctx, events.NewBookingReservedEvent("book-1", "acc-1", start, start.Add(time.Hour)))
			Expect(err).To(MatchError(ContainSubstring("nil resource")))
		})

		It("is a no-op without subscribers", func() {
			Expect(bus.PublishSync(ctx, events.NewPaymentFailedEvent("pay-1", "book-1", "FAILED", ""))).To(Succeed())
		})
	})

	Describe("Publish", func() {
		It("keeps delivering after the publishing request is cancelled", func() {
			delivered := make(chan error, 1)
			bus.Subscribe(events.EventTypeBookingReleased, func(c context.Context, e events.Event) error {
				time.Sleep(20 * time.Millisecond)
				delivered <- c.Err()
				return nil
			})

			reqCtx, cancel := context.WithCancel(ctx)
			start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			bus.Publish(reqCtx, events.NewBookingReleasedEvent("book-1", "acc-1", "EXPIRED", start, start.Add(time.Hour)))
			cancel()

			Expect(bus.Drain(ctx)).To(Succeed())
			Eventually(delivered).Should(Receive(BeNil()))
		})

		It("stops draining when the shutdown deadline passes", func() {
			release := make(chan struct{})
			bus.Subscribe(events.EventTypePaymentCompleted, func(context.Context, events.Event) error {
				<-release
				return nil
			})
			bus.Publish(ctx, events.NewPaymentCompletedEvent("pay-1", "book-1", "75000.00", "QRIS", "REF-1"))

			short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			Expect(bus.Drain(short)).To(MatchError(context.DeadlineExceeded))

			close(release)
			Expect(bus.Drain(ctx)).To(Succeed())
		})
	})
})
