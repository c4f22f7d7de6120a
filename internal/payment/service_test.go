package payment_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	errs "github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/booking"
	bookingpg "github.com/frahmantamala/account-rental/internal/booking/postgres"
	"github.com/frahmantamala/account-rental/internal/core/common/testdb"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/core/events"
	"github.com/frahmantamala/account-rental/internal/payment"
	paymentpg "github.com/frahmantamala/account-rental/internal/payment/postgres"
)

var _ = Describe("PaymentOrchestrator", func() {
	var (
		db           *gorm.DB
		repo         *paymentpg.PaymentRepository
		gateway      *fakeGateway
		bus          *events.EventBus
		rec          *recorder
		reconciler   *payment.Reconciler
		orchestrator *payment.PaymentOrchestrator
		ctx          context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).ToNot(HaveOccurred())
		Expect(testdb.SeedResource(db, "acc-1", decimal.NewFromInt(25000), decimal.NewFromInt(400000))).To(Succeed())

		repo = paymentpg.NewPaymentRepository(db)
		gateway = &fakeGateway{}
		bus = events.NewEventBus(quietLg)
		rec = &recorder{}
		rec.subscribe(bus)
		reconciler = payment.NewReconciler(repo, bus, quietLg).WithClock(func() time.Time { return base.Add(5 * time.Minute) })
		orchestrator = payment.NewPaymentOrchestrator(repo, gateway, reconciler, quietLg, payment.ServiceConfig{Provider: "snap"})
		ctx = context.Background()
	})

	AfterEach(func() {
		testdb.Close(db)
	})

	Describe("InitiatePayment", func() {
		It("opens a session for a held booking", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))

			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodVirtualAccount)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Created).To(BeTrue())
			Expect(result.Payment.Status).To(Equal(paymentmodel.StatusPending))
			Expect(result.Payment.Value.StringFixed(2)).To(Equal("75000.00"))
			Expect(*result.Payment.BankAccountNo).To(Equal("8808" + result.Payment.ID[:8]))

			Expect(gateway.requests).To(HaveLen(1))
			Expect(gateway.requests[0].PartnerReferenceNo).To(Equal(result.Payment.ID))
			Expect(gateway.requests[0].ExpiresAt.Equal(base.Add(15 * time.Minute))).To(BeTrue())

			stored, _ := reload(db, result.Payment.ID)
			Expect(stored.Version).To(Equal(int64(2)))
		})

		It("rejects an unknown method before touching storage", func() {
			strict := &untouchableRepo{}
			o := payment.NewPaymentOrchestrator(strict, gateway, reconciler, quietLg, payment.ServiceConfig{})
			_, err := o.InitiatePayment(ctx, "b-1", owner, paymentmodel.Method("CASH"))
			Expect(err).To(MatchError(errs.ErrUnsupportedPaymentMethod))
			Expect(strict.calls).To(BeZero())
		})

		It("rejects someone else's booking", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			_, err := orchestrator.InitiatePayment(ctx, b.ID, "intruder", paymentmodel.MethodQRIS)
			Expect(err).To(MatchError(errs.ErrUnauthorizedAccess))
		})

		It("rejects a booking that is not on hold", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			Expect(db.Model(&bookingmodel.Booking{}).Where("id = ?", b.ID).Update("status", bookingmodel.StatusExpired).Error).ToNot(HaveOccurred())

			_, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).To(MatchError(errs.ErrInvalidState))
			Expect(gateway.sessions).To(BeZero())
		})

		It("reports a missing booking", func() {
			_, err := orchestrator.InitiatePayment(ctx, "missing", owner, paymentmodel.MethodQRIS)
			Expect(err).To(MatchError(errs.ErrBookingNotFound))
		})

		It("marks the attempt failed and keeps the hold when the gateway refuses", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			gateway.sessionErr = errs.ErrGateway

			_, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodVirtualAccount)
			Expect(err).To(MatchError(errs.ErrGateway))

			payments, err := repo.ListByBooking(ctx, b.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(payments).To(HaveLen(1))
			Expect(payments[0].Status).To(Equal(paymentmodel.StatusFailed))

			stored, err := repo.GetBooking(ctx, b.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.Status).To(Equal(bookingmodel.StatusHold))
		})

		It("skips a VA customer number already held by a pending payment", func() {
			const paymentID = "5b0e7f52-3c61-4b8a-9a57-0c3f1d2e4a11"
			held := seedHold(db, 75000, base.Add(15*time.Minute))
			va := "8808" + gw.CustomerNumber(paymentID, 0)
			Expect(db.Create(&paymentmodel.Payment{
				ID:            uuid.NewString(),
				BookingID:     held.ID,
				Status:        paymentmodel.StatusPending,
				Value:         decimal.NewFromInt(75000),
				Currency:      "IDR",
				Provider:      "snap",
				PaymentMethod: paymentmodel.MethodVirtualAccount,
				BankAccountNo: &va,
				Version:       1,
			}).Error).ToNot(HaveOccurred())

			o := payment.NewPaymentOrchestrator(repo, gateway, reconciler, quietLg, payment.ServiceConfig{Provider: "snap", VAPrefix: " 8808"}).
				WithIDs(func() string { return paymentID })
			b := seedHold(db, 75000, base.Add(15*time.Minute))

			result, err := o.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodVirtualAccount)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Payment.ID).To(Equal(paymentID))
			Expect(gateway.requests).To(HaveLen(1))
			Expect(gateway.requests[0].CustomerNo).To(Equal(gw.CustomerNumber(paymentID, 1)))
			Expect(gateway.requests[0].CustomerNo).ToNot(Equal(gw.CustomerNumber(paymentID, 0)))
		})

		It("fails the attempt when the provider reuses a VA held by another pending payment", func() {
			gateway.fixedVA = " 8808 0000 1111 "
			first := seedHold(db, 75000, base.Add(15*time.Minute))
			firstResult, err := orchestrator.InitiatePayment(ctx, first.ID, owner, paymentmodel.MethodVirtualAccount)
			Expect(err).ToNot(HaveOccurred())
			Expect(*firstResult.Payment.BankAccountNo).To(Equal("880800001111"))

			second := seedHold(db, 75000, base.Add(15*time.Minute))
			_, err = orchestrator.InitiatePayment(ctx, second.ID, owner, paymentmodel.MethodVirtualAccount)
			Expect(err).To(MatchError(errs.ErrGateway))

			attempts, err := repo.ListByBooking(ctx, second.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(attempts).To(HaveLen(1))
			Expect(attempts[0].Status).To(Equal(paymentmodel.StatusFailed))
			Expect(attempts[0].BankAccountNo).To(BeNil())

			found, err := repo.LatestByBankAccountNo(ctx, "880800001111")
			Expect(err).ToNot(HaveOccurred())
			Expect(found.ID).To(Equal(firstResult.Payment.ID))
		})

		It("shares one attempt between concurrent requests", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))

			const callers = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				ids     = map[string]bool{}
				created int
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
					Expect(err).ToNot(HaveOccurred())
					mu.Lock()
					ids[result.Payment.ID] = true
					if result.Created {
						created++
					}
					mu.Unlock()
				}()
			}
			wg.Wait()

			Expect(ids).To(HaveLen(1))
			Expect(created).To(Equal(1))
			Expect(gateway.sessions).To(Equal(int32(1)))
		})
	})

	Describe("Verify", func() {
		It("finalizes a terminal provider answer", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).ToNot(HaveOccurred())

			paidAt := base.Add(3 * time.Minute)
			gateway.status = &gw.StatusResult{Status: paymentmodel.StatusSuccess, ProviderReferenceNo: "REF-9", PaidAt: &paidAt}

			p, err := orchestrator.Verify(ctx, result.Payment.ID, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentmodel.StatusSuccess))

			_, stored := reload(db, p.ID)
			Expect(stored.Status).To(Equal(bookingmodel.StatusReserved))
			Eventually(rec.seen).Should(ContainElements(events.EventTypePaymentCompleted, events.EventTypeBookingReserved))
		})

		It("leaves a pending answer alone", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).ToNot(HaveOccurred())
			gateway.status = &gw.StatusResult{Status: paymentmodel.StatusPending}

			p, err := orchestrator.Verify(ctx, result.Payment.ID, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentmodel.StatusPending))
			Expect(p.Version).To(Equal(int64(2)))
		})

		It("does not call the gateway for a settled attempt", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).ToNot(HaveOccurred())
			_, err = reconciler.Finalize(ctx, result.Payment.ID, payment.Outcome{Status: paymentmodel.StatusFailed})
			Expect(err).ToNot(HaveOccurred())

			gateway.statusErr = errs.ErrGateway
			p, err := orchestrator.Verify(ctx, result.Payment.ID, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentmodel.StatusFailed))
		})
	})

	Describe("Reconciler", func() {
		It("rejects an unknown status", func() {
			_, err := reconciler.Finalize(ctx, "p-1", payment.Outcome{Status: paymentmodel.Status("WEIRD")})
			Expect(err).To(HaveOccurred())
		})

		It("applies exactly one of many concurrent outcomes", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).ToNot(HaveOccurred())

			outcomes := []paymentmodel.Status{
				paymentmodel.StatusSuccess, paymentmodel.StatusFailed, paymentmodel.StatusSuccess,
				paymentmodel.StatusCancelled, paymentmodel.StatusSuccess, paymentmodel.StatusExpired,
			}
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				applied int
			)
			for _, status := range outcomes {
				wg.Add(1)
				go func(status paymentmodel.Status) {
					defer wg.Done()
					defer GinkgoRecover()
					r, err := reconciler.Finalize(ctx, result.Payment.ID, payment.Outcome{Status: status})
					Expect(err).ToNot(HaveOccurred())
					if r.Applied {
						mu.Lock()
						applied++
						mu.Unlock()
					}
				}(status)
			}
			wg.Wait()

			Expect(applied).To(Equal(1))
			p, stored := reload(db, result.Payment.ID)
			Expect(p.Version).To(Equal(int64(3)))
			Expect(stored.Status).To(Equal(p.Status.BookingStatus()))
		})
	})

	Describe("booking release with a payment in flight", func() {
		var service *booking.Service

		BeforeEach(func() {
			service = booking.NewService(bookingpg.NewBookingRepository(db), bookingpg.NewCatalogRepository(db), reconciler, quietLg, booking.Config{
				Now: func() time.Time { return base.Add(time.Hour) },
			})
		})

		It("cancels the pending attempt with the hold", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).ToNot(HaveOccurred())

			cancelled, err := service.Cancel(ctx, b.ID, owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(cancelled.Status).To(Equal(bookingmodel.StatusCancelled))

			p, _ := reload(db, result.Payment.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusCancelled))
		})

		It("expires the pending attempt with a stale hold", func() {
			b := seedHold(db, 75000, base.Add(15*time.Minute))
			result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
			Expect(err).ToNot(HaveOccurred())

			sweep, err := service.ExpireStaleHolds(ctx, time.Time{})
			Expect(err).ToNot(HaveOccurred())
			Expect(sweep.Succeeded).To(Equal(1))

			p, stored := reload(db, result.Payment.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusExpired))
			Expect(stored.Status).To(Equal(bookingmodel.StatusExpired))
		})
	})
})
