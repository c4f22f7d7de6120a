package booking_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/booking"
	"github.com/frahmantamala/account-rental/internal/booking/postgres"
	"github.com/frahmantamala/account-rental/internal/core/common/testdb"
)

var _ = Describe("Handler", func() {
	var (
		db     *gorm.DB
		router *chi.Mux
		now    time.Time
	)

	withActor := func(actorID string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id := actorID
				if override := r.Header.Get("X-Test-Actor"); override != "" {
					id = override
				}
				next.ServeHTTP(w, r.WithContext(internal.ContextWithActorID(r.Context(), id)))
			})
		}
	}

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).ToNot(HaveOccurred())
		Expect(testdb.SeedResource(db, "acc-1", decimal.NewFromInt(15000), decimal.NewFromInt(300000))).To(Succeed())

		now = time.Now().UTC().Truncate(time.Second)
		repo := postgres.NewBookingRepository(db)
		catalog := postgres.NewCatalogRepository(db)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc := booking.NewService(repo, catalog, &mockFinalizer{repo: newMockRepository()}, logger, booking.Config{
			Now: func() time.Time { return now },
		})
		h := booking.NewHandler(svc, catalog)

		router = chi.NewRouter()
		router.Group(func(r chi.Router) {
			r.Use(withActor("user-1"))
			r.Post("/bookings", h.CreateBooking)
			r.Get("/bookings", h.ListBookings)
			r.Get("/bookings/{id}", h.GetBooking)
			r.Post("/bookings/{id}/cancel", h.CancelBooking)
		})
		router.Post("/cron/expire-holds", h.ExpireHolds)
	})

	AfterEach(func() {
		testdb.Close(db)
	})

	create := func(body map[string]interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(raw)))
		return rec
	}

	It("creates a hold priced from the resource rates", func() {
		rec := create(map[string]interface{}{
			"resource_id":        "acc-1",
			"base_duration_unit": 1,
			"base_duration_type": "hourly",
			"quantity":           2,
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var resp booking.BookingResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal("HOLD"))
		Expect(resp.TotalValue).To(Equal("30000.00"))
		Expect(*resp.ActorID).To(Equal("user-1"))
	})

	It("answers 409 for an overlapping window", func() {
		body := map[string]interface{}{
			"resource_id":        "acc-1",
			"base_duration_unit": 1,
			"base_duration_type": "HOURLY",
			"quantity":           2,
		}
		Expect(create(body).Code).To(Equal(http.StatusCreated))

		rec := create(body)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring("RESOURCE_UNAVAILABLE"))
	})

	It("answers 400 for an invalid body", func() {
		rec := create(map[string]interface{}{"resource_id": "acc-1", "quantity": 0})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 404 for an unknown resource", func() {
		rec := create(map[string]interface{}{
			"resource_id":        "acc-404",
			"base_duration_unit": 1,
			"base_duration_type": "DAILY",
			"quantity":           1,
		})
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("lets only the owner read and cancel", func() {
		rec := create(map[string]interface{}{
			"resource_id":        "acc-1",
			"base_duration_unit": 1,
			"base_duration_type": "DAILY",
			"quantity":           1,
		})
		var created booking.BookingResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())

		req := httptest.NewRequest(http.MethodGet, "/bookings/"+created.ID, nil)
		req.Header.Set("X-Test-Actor", "intruder")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings/"+created.ID+"/cancel", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"status":"CANCELLED"`))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		var list booking.BookingsResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Bookings).To(HaveLen(1))
	})

	It("sweeps stale holds from the cron endpoint", func() {
		Expect(create(map[string]interface{}{
			"resource_id":        "acc-1",
			"base_duration_unit": 1,
			"base_duration_type": "HOURLY",
			"quantity":           1,
		}).Code).To(Equal(http.StatusCreated))

		now = now.Add(time.Hour)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cron/expire-holds", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp booking.SweepResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Scanned).To(Equal(1))
		Expect(resp.Succeeded).To(Equal(1))
	})
})
