package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errs "github.com/frahmantamala/account-rental/internal"
	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/account-rental/internal/payment"
)

type stubService struct {
	created bool
	err     error
	method  paymentmodel.Method
}

func (s *stubService) attempt(id string) *payment.Payment {
	return &payment.Payment{
		ID:            id,
		BookingID:     "b-1",
		Status:        paymentmodel.StatusPending,
		Value:         decimal.RequireFromString("75000"),
		Currency:      "IDR",
		PaymentMethod: s.method,
		Version:       2,
	}
}

func (s *stubService) InitiatePayment(_ context.Context, _, _ string, method paymentmodel.Method) (*payment.InitiateResult, error) {
	s.method = method
	if s.err != nil {
		return nil, s.err
	}
	return &payment.InitiateResult{Payment: s.attempt("p-1"), Created: s.created}, nil
}

func (s *stubService) Verify(_ context.Context, paymentID, _ string) (*payment.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.attempt(paymentID), nil
}

func (s *stubService) GetPayment(_ context.Context, paymentID, _ string) (*payment.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.attempt(paymentID), nil
}

func (s *stubService) ListByBooking(_ context.Context, _, _ string) ([]payment.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []payment.Payment{*s.attempt("p-1"), *s.attempt("p-0")}, nil
}

var _ = Describe("Handler", func() {
	var (
		service *stubService
		router  chi.Router
	)

	BeforeEach(func() {
		service = &stubService{created: true}
		h := payment.NewHandler(service)
		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Anonymous") == "" {
					r = r.WithContext(errs.ContextWithActorID(r.Context(), owner))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Post("/bookings/{id}/payments", h.InitiatePayment)
		router.Get("/bookings/{id}/payments", h.ListPayments)
		router.Get("/payments/{id}", h.GetPayment)
		router.Post("/payments/{id}/verify", h.VerifyPayment)
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	It("answers 201 for a new attempt", func() {
		rr := serve(http.MethodPost, "/bookings/b-1/payments", `{"method":"virtual_account"}`)
		Expect(rr.Code).To(Equal(http.StatusCreated))
		Expect(service.method).To(Equal(paymentmodel.MethodVirtualAccount))

		var resp payment.PaymentResponse
		Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Value).To(Equal("75000.00"))
	})

	It("answers 200 for a reused attempt", func() {
		service.created = false
		rr := serve(http.MethodPost, "/bookings/b-1/payments", `{"method":"QRIS"}`)
		Expect(rr.Code).To(Equal(http.StatusOK))
	})

	It("rejects an unsupported method", func() {
		rr := serve(http.MethodPost, "/bookings/b-1/payments", `{"method":"CASH"}`)
		Expect(rr.Code).To(Equal(http.StatusBadRequest))
		Expect(service.method).To(BeEmpty())
	})

	It("maps service errors", func() {
		service.err = errs.ErrInvalidState
		rr := serve(http.MethodPost, "/bookings/b-1/payments", `{"method":"QRIS"}`)
		Expect(rr.Code).To(Equal(http.StatusConflict))

		service.err = errs.ErrUnauthorizedAccess
		rr = serve(http.MethodGet, "/payments/p-1", "")
		Expect(rr.Code).To(Equal(http.StatusForbidden))
	})

	It("requires an authenticated actor", func() {
		req := httptest.NewRequest(http.MethodGet, "/payments/p-1", nil)
		req.Header.Set("X-Anonymous", "1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		Expect(rr.Code).To(Equal(http.StatusUnauthorized))
	})

	It("lists and verifies attempts", func() {
		rr := serve(http.MethodGet, "/bookings/b-1/payments", "")
		Expect(rr.Code).To(Equal(http.StatusOK))
		var list payment.PaymentsResponse
		Expect(json.Unmarshal(rr.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Payments).To(HaveLen(2))

		rr = serve(http.MethodPost, "/payments/p-7/verify", "")
		Expect(rr.Code).To(Equal(http.StatusOK))
	})
})
