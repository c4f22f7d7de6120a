package catalog_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/account-rental/internal/catalog"
	catalogpg "github.com/frahmantamala/account-rental/internal/catalog/postgres"
	"github.com/frahmantamala/account-rental/internal/core/common/testdb"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
	"github.com/frahmantamala/account-rental/internal/transport"
)

var _ = Describe("Catalog Handler Integration", func() {
	var (
		db     *gorm.DB
		router chi.Router
	)

	BeforeEach(func() {
		var err error
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		Expect(testdb.SeedResource(db, "netflix-1", decimal.NewFromInt(5000), decimal.NewFromInt(35000))).To(Succeed())
		Expect(testdb.SeedResource(db, "spotify-1", decimal.NewFromInt(2000), decimal.NewFromInt(15000))).To(Succeed())

		// active but never priced
		Expect(db.Create(&resource.Resource{ID: "draft-1", Name: "draft", IsActive: true}).Error).To(Succeed())

		// priced but retired
		Expect(testdb.SeedResource(db, "retired-1", decimal.NewFromInt(1000), decimal.NewFromInt(9000))).To(Succeed())
		Expect(db.Model(&resource.Resource{}).Where("id = ?", "retired-1").Update("is_active", false).Error).To(Succeed())

		service := catalog.NewService(catalogpg.NewCatalogRepository(db), slogger)
		handler := catalog.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Get("/resources", handler.ListResources)
		router.Get("/resources/{id}", handler.GetResource)
	})

	AfterEach(func() {
		testdb.Close(db)
	})

	It("lists only rentable resources", func() {
		req := httptest.NewRequest(http.MethodGet, "/resources", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response catalog.ResourcesResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())

		ids := make([]string, len(response.Resources))
		for i, res := range response.Resources {
			ids[i] = res.ID
		}
		Expect(ids).To(ConsistOf("netflix-1", "spotify-1"))
	})

	It("renders the price list with two decimals", func() {
		req := httptest.NewRequest(http.MethodGet, "/resources/netflix-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))

		var response catalog.ResourceResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Rates).To(HaveLen(2))
		Expect(response.Rates[0].DurationType).To(Equal("HOURLY"))
		Expect(response.Rates[0].MainValuePerUnit).To(Equal("5000.00"))
		Expect(response.Rates[1].MainValuePerUnit).To(Equal("35000.00"))
	})

	It("answers 404 for unknown, unpriced and retired resources", func() {
		for _, id := range []string{"nope", "draft-1", "retired-1"} {
			req := httptest.NewRequest(http.MethodGet, "/resources/"+id, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusNotFound), id)
		}
	})
})
