package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

var _ = Describe("VAService", func() {
	var (
		db      *gorm.DB
		repo    *paymentpg.PaymentRepository
		va      *payment.VAService
		clock   time.Time
		ctx     context.Context
		pending *payment.Payment
		held    *bookingmodel.Booking
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).ToNot(HaveOccurred())
		Expect(testdb.SeedResource(db, "acc-1", decimal.NewFromInt(25000), decimal.NewFromInt(400000))).To(Succeed())

		ctx = context.Background()
		clock = base.Add(5 * time.Minute)
		repo = paymentpg.NewPaymentRepository(db)
		reconciler := payment.NewReconciler(repo, nil, quietLg).WithClock(func() time.Time { return clock })
		orchestrator := payment.NewPaymentOrchestrator(repo, &fakeGateway{}, reconciler, quietLg, payment.ServiceConfig{Provider: "snap"})
		va = payment.NewVAService(repo, reconciler, quietLg, 5*time.Minute).WithClock(func() time.Time { return clock })

		held = seedHold(db, 75000, base.Add(15*time.Minute))
		result, err := orchestrator.InitiatePayment(ctx, held.ID, owner, paymentmodel.MethodVirtualAccount)
		Expect(err).ToNot(HaveOccurred())
		pending = result.Payment
	})

	AfterEach(func() {
		testdb.Close(db)
	})

	inquiry := func(vaNo string) gw.VAInquiryRequest {
		return gw.VAInquiryRequest{
			PartnerServiceID: "   8808",
			CustomerNo:       pending.ID[:8],
			VirtualAccountNo: vaNo,
			InquiryRequestID: "inq-1",
		}
	}

	pay := func(amount string) gw.VAPaymentRequest {
		return gw.VAPaymentRequest{
			PartnerServiceID: "   8808",
			CustomerNo:       pending.ID[:8],
			VirtualAccountNo: *pending.BankAccountNo,
			PaymentRequestID: "pay-req-1",
			PaidAmount:       gw.Amount{Value: amount, Currency: "IDR"},
			TrxDateTime:      "2026-03-01T17:04:00+07:00",
			ReferenceNo:      "BANK-REF-1",
		}
	}

	Describe("Inquiry", func() {
		It("answers with the bill of a payable attempt", func() {
			resp := va.Inquiry(ctx, inquiry("  8808 "+pending.ID[:8]))
			Expect(resp.ResponseCode).To(Equal(gw.CodeInquiryOK))
			Expect(resp.VirtualAccountData.TotalAmount.Value).To(Equal("75000.00"))
			Expect(resp.VirtualAccountData.InquiryRequestID).To(Equal("inq-1"))
			Expect(resp.VirtualAccountData.ExpiredDate).ToNot(BeEmpty())

			p, _ := reload(db, pending.ID)
			Expect(*p.InquiryRequestID).To(Equal("inq-1"))
			Expect(callbackCount(db)).To(Equal(int64(1)))
		})

		It("does not know an unissued number", func() {
			resp := va.Inquiry(ctx, inquiry("88089999"))
			Expect(resp.ResponseCode).To(Equal(gw.CodeInquiryNotFound))
			Expect(callbackCount(db)).To(BeZero())
		})

		It("still answers inside the grace window", func() {
			clock = base.Add(18 * time.Minute)
			resp := va.Inquiry(ctx, inquiry(*pending.BankAccountNo))
			Expect(resp.ResponseCode).To(Equal(gw.CodeInquiryOK))
		})

		It("reports an expired hold past the grace window", func() {
			clock = base.Add(21 * time.Minute)
			resp := va.Inquiry(ctx, inquiry(*pending.BankAccountNo))
			Expect(resp.ResponseCode).To(Equal(gw.CodeInquiryExpired))
		})

		It("reports a paid bill", func() {
			Expect(va.Pay(ctx, pay("75000.00")).ResponseCode).To(Equal(gw.CodePaymentOK))
			resp := va.Inquiry(ctx, inquiry(*pending.BankAccountNo))
			Expect(resp.ResponseCode).To(Equal(gw.CodeInquiryPaid))
		})
	})

	Describe("Pay", func() {
		It("settles the attempt and reserves the booking", func() {
			resp := va.Pay(ctx, pay("75000"))
			Expect(resp.ResponseCode).To(Equal(gw.CodePaymentOK))
			Expect(resp.VirtualAccountData.PaidAmount.Value).To(Equal("75000.00"))

			p, b := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusSuccess))
			Expect(*p.ProviderReferenceNo).To(Equal("BANK-REF-1"))
			Expect(p.PaidAt.Equal(time.Date(2026, 3, 1, 10, 4, 0, 0, time.UTC))).To(BeTrue())
			Expect(b.Status).To(Equal(bookingmodel.StatusReserved))
		})

		It("acknowledges a repeat without writing anything", func() {
			Expect(va.Pay(ctx, pay("75000.00")).ResponseCode).To(Equal(gw.CodePaymentOK))
			before, beforeBooking := reload(db, pending.ID)
			callbacks := callbackCount(db)

			resp := va.Pay(ctx, pay("75000.00"))
			Expect(resp.ResponseCode).To(Equal(gw.CodePaymentOK))

			after, afterBooking := reload(db, pending.ID)
			Expect(after.Version).To(Equal(before.Version))
			Expect(after.UpdatedAt.Equal(before.UpdatedAt)).To(BeTrue())
			Expect(afterBooking.Version).To(Equal(beforeBooking.Version))
			Expect(callbackCount(db)).To(Equal(callbacks))
		})

		It("refuses a wrong amount", func() {
			resp := va.Pay(ctx, pay("70000.00"))
			Expect(resp.ResponseCode).To(Equal(gw.CodePaymentAmountWrong))

			p, b := reload(db, pending.ID)
			Expect(p.Status).To(Equal(paymentmodel.StatusPending))
			Expect(b.Status).To(Equal(bookingmodel.StatusHold))
		})

		It("does not know an unissued number", func() {
			req := pay("75000.00")
			req.VirtualAccountNo = "0000"
			Expect(va.Pay(ctx, req).ResponseCode).To(Equal(gw.CodePaymentNotFound))
		})
	})
})

var _ = Describe("VAHandler", func() {
	post := func(h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		Expect(err).ToNot(HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		h(rr, req)
		return rr
	}

	decode := func(rr *httptest.ResponseRecorder) map[string]interface{} {
		var out map[string]interface{}
		Expect(json.Unmarshal(rr.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	It("rejects a bad signature before any storage access", func() {
		strict := &untouchableRepo{}
		service := payment.NewVAService(strict, nil, quietLg, 0)
		h := payment.NewVAHandler(service, fakeVerifier{reject: true}, "", "")

		rr := post(h.Inquiry, gw.PathVAInquiry, gw.VAInquiryRequest{VirtualAccountNo: "1", InquiryRequestID: "x"})
		Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(rr)["responseCode"]).To(Equal(gw.CodeInquiryBadSig))

		rr = post(h.Payment, gw.PathVAPayment, gw.VAPaymentRequest{VirtualAccountNo: "1", PaymentRequestID: "x"})
		Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(rr)["responseCode"]).To(Equal(gw.CodePaymentBadSig))

		Expect(strict.calls).To(BeZero())
	})

	It("rejects a body missing mandatory fields", func() {
		strict := &untouchableRepo{}
		h := payment.NewVAHandler(payment.NewVAService(strict, nil, quietLg, 0), fakeVerifier{}, "", "")

		rr := post(h.Inquiry, gw.PathVAInquiry, map[string]string{"customerNo": "1"})
		Expect(rr.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(rr)["responseCode"]).To(Equal(gw.CodeInquiryBadRequest))
		Expect(strict.calls).To(BeZero())
	})

	It("derives the HTTP status from the response code", func() {
		strict := &untouchableRepo{}
		h := payment.NewVAHandler(payment.NewVAService(strict, nil, quietLg, 0), fakeVerifier{}, "", "")

		rr := post(h.Inquiry, gw.PathVAInquiry, gw.VAInquiryRequest{VirtualAccountNo: "1", InquiryRequestID: "x"})
		Expect(rr.Code).To(Equal(http.StatusInternalServerError))
		Expect(decode(rr)["responseCode"]).To(Equal(gw.CodeInquiryInternalErr))
	})
})
