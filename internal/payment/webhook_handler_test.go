package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/account-rental/internal/core/common/testdb"
	bookingmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/booking"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	gw "github.com/frahmantamala/account-rental/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/payment"
	paymentpg "github.com/frahmantamala/account-rental/internal/payment/postgres"
)

var _ = Describe("WebhookHandler", func() {
	var (
		db      *gorm.DB
		repo    *paymentpg.PaymentRepository
		handler *payment.WebhookHandler
		pending *payment.Payment
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).ToNot(HaveOccurred())
		Expect(testdb.SeedResource(db, "acc-1", decimal.NewFromInt(25000), decimal.NewFromInt(400000))).To(Succeed())

		ctx = context.Background()
		repo = paymentpg.NewPaymentRepository(db)
		reconciler := payment.NewReconciler(repo, nil, quietLg)
		orchestrator := payment.NewPaymentOrchestrator(repo, &fakeGateway{}, reconciler, quietLg, payment.ServiceConfig{Provider: "snap"})
		handler = payment.NewWebhookHandler(payment.NewNotificationService(repo, reconciler, quietLg), fakeVerifier{}, "")

		b := seedHold(db, 75000, base.Add(15*time.Minute))
		result, err := orchestrator.InitiatePayment(ctx, b.ID, owner, paymentmodel.MethodQRIS)
		Expect(err).ToNot(HaveOccurred())
		pending = result.Payment
	})

	AfterEach(func() {
		testdb.Close(db)
	})

	notify := func(h *payment.WebhookHandler, n gw.Notification) (*httptest.ResponseRecorder, gw.NotificationAck) {
		raw, err := json.Marshal(n)
		Expect(err).ToNot(HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, gw.PathQRNotify, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		h.Notify(rr, req)

		var ack gw.NotificationAck
		Expect(json.Unmarshal(rr.Body.Bytes(), &ack)).To(Succeed())
		return rr, ack
	}

	Describe("Notify", func() {
		It("finalizes a successful payment", func() {
			rr, ack := notify(handler, gw.Notification{
				OriginalReferenceNo:        "QR-REF-1",
				OriginalPartnerReferenceNo: pending.ID,
				LatestTransactionStatus:    "00",
				PaidTime:                   "2026-03-01T17:02:00+07:00",
			})
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyOK))

			p, b := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusSuccess))
			Expect(*p.ProviderReferenceNo).To(Equal("QR-REF-1"))
			Expect(b.Status).To(Equal(bookingmodel.StatusReserved))
			Expect(callbackCount(db)).To(Equal(int64(1)))
		})

		It("acknowledges an in-progress status without settling", func() {
			rr, ack := notify(handler, gw.Notification{
				OriginalPartnerReferenceNo: pending.ID,
				LatestTransactionStatus:    "03",
			})
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyOK))

			p, _ := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusPending))
		})

		It("treats an unknown status code as a failure", func() {
			notify(handler, gw.Notification{
				OriginalPartnerReferenceNo: pending.ID,
				LatestTransactionStatus:    "99",
			})
			p, b := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusFailed))
			Expect(b.Status).To(Equal(bookingmodel.StatusFailed))
		})

		It("keeps the first terminal outcome", func() {
			notify(handler, gw.Notification{OriginalPartnerReferenceNo: pending.ID, LatestTransactionStatus: "00"})
			before, _ := reload(db, pending.ID)

			rr, ack := notify(handler, gw.Notification{OriginalPartnerReferenceNo: pending.ID, LatestTransactionStatus: "05"})
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyOK))

			after, b := reload(db, pending.ID)
			Expect(after.Status).To(Equal(paymentmodel.StatusSuccess))
			Expect(after.Version).To(Equal(before.Version))
			Expect(b.Status).To(Equal(bookingmodel.StatusReserved))
		})

		It("reports an unknown payment", func() {
			rr, ack := notify(handler, gw.Notification{OriginalPartnerReferenceNo: "nope", LatestTransactionStatus: "00"})
			Expect(rr.Code).To(Equal(http.StatusNotFound))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyNotFound))
		})

		It("rejects a bad signature before any storage access", func() {
			strict := &untouchableRepo{}
			h := payment.NewWebhookHandler(payment.NewNotificationService(strict, nil, quietLg), fakeVerifier{reject: true}, "")

			rr, ack := notify(h, gw.Notification{OriginalPartnerReferenceNo: pending.ID, LatestTransactionStatus: "00"})
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyBadSig))
			Expect(strict.calls).To(BeZero())
			Expect(callbackCount(db)).To(BeZero())
		})

		It("rejects a body without the mandatory fields", func() {
			rr, ack := notify(handler, gw.Notification{OriginalReferenceNo: "x"})
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyBadRequest))
		})

		It("asks for a retry when storage fails", func() {
			strict := &untouchableRepo{}
			h := payment.NewWebhookHandler(payment.NewNotificationService(strict, nil, quietLg), fakeVerifier{}, "")

			rr, ack := notify(h, gw.Notification{OriginalPartnerReferenceNo: pending.ID, LatestTransactionStatus: "00"})
			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(ack.ResponseCode).To(Equal(gw.CodeNotifyInternalErr))
		})
	})

	Describe("LegacyNotify", func() {
		legacy := func(h *payment.WebhookHandler, form url.Values) (*httptest.ResponseRecorder, gw.LegacyNotificationResponse) {
			req := httptest.NewRequest(http.MethodPost, gw.PathLegacyNotify, strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := httptest.NewRecorder()
			h.LegacyNotify(rr, req)

			var resp gw.LegacyNotificationResponse
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			return rr, resp
		}

		form := func(billNo, status string) url.Values {
			return url.Values{
				"request":             {"Payment Notification"},
				"trx_id":              {"TRX-1"},
				"merchant_id":         {"M-1"},
				"merchant":            {"Rental"},
				"bill_no":             {billNo},
				"payment_reff":        {"LEG-REF-1"},
				"payment_date":        {"2026-03-01 17:01:00"},
				"payment_status_code": {status},
				"signature":           {"abc"},
			}
		}

		It("finalizes a paid bill", func() {
			rr, resp := legacy(handler, form(pending.ID, "2"))
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(resp.ResponseCode).To(Equal(gw.LegacyResponseOK))
			Expect(resp.BillNo).To(Equal(pending.ID))
			Expect(resp.TrxID).To(Equal("TRX-1"))
			Expect(resp.ResponseDate).ToNot(BeEmpty())

			p, b := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusSuccess))
			Expect(p.PaidAt.Equal(time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC))).To(BeTrue())
			Expect(b.Status).To(Equal(bookingmodel.StatusReserved))
		})

		It("maps an expired bill", func() {
			legacy(handler, form(pending.ID, "7"))
			p, b := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusExpired))
			Expect(b.Status).To(Equal(bookingmodel.StatusExpired))
		})

		It("accepts a JSON body", func() {
			raw, err := json.Marshal(gw.LegacyNotification{BillNo: pending.ID, PaymentStatusCode: "8", Signature: "abc"})
			Expect(err).ToNot(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, gw.PathLegacyNotify, bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			handler.LegacyNotify(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))

			p, _ := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusCancelled))
		})

		It("rejects a bad signature before any storage access", func() {
			strict := &untouchableRepo{}
			h := payment.NewWebhookHandler(payment.NewNotificationService(strict, nil, quietLg), fakeVerifier{reject: true}, "")

			rr, resp := legacy(h, form(pending.ID, "2"))
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(resp.ResponseCode).To(Equal(gw.LegacyResponseBadSig))
			Expect(strict.calls).To(BeZero())
		})

		It("reports an unknown bill", func() {
			rr, resp := legacy(handler, form("nope", "2"))
			Expect(rr.Code).To(Equal(http.StatusNotFound))
			Expect(resp.ResponseCode).To(Equal(gw.LegacyResponseNotFound))
		})
	})
})
