package postgres_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	errs "github.com/frahmantamala/account-rental/internal"
	catalogpg "github.com/frahmantamala/account-rental/internal/catalog/postgres"
	"github.com/frahmantamala/account-rental/internal/core/common/testdb"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
)

func TestCatalogPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog Postgres Suite")
}

var _ = Describe("Catalog PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo *catalogpg.CatalogRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		repo = catalogpg.NewCatalogRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		testdb.Close(db)
	})

	Describe("ListResources", func() {
		It("returns nothing on an empty catalog", func() {
			rows, rates, err := repo.ListResources(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
			Expect(rates).To(BeEmpty())
		})

		It("returns active resources by name with their rates", func() {
			Expect(testdb.SeedResource(db, "z-id", decimal.NewFromInt(1), decimal.NewFromInt(2))).To(Succeed())
			Expect(db.Create(&resource.Resource{ID: "a-id", Name: "aaa", IsActive: true}).Error).To(Succeed())
			Expect(testdb.SeedResource(db, "off", decimal.NewFromInt(1), decimal.NewFromInt(2))).To(Succeed())
			Expect(db.Model(&resource.Resource{}).Where("id = ?", "off").Update("is_active", false).Error).To(Succeed())

			rows, rates, err := repo.ListResources(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].ID).To(Equal("a-id"))
			Expect(rates).To(HaveLen(2))
			for _, rate := range rates {
				Expect(rate.ResourceID).To(Equal("z-id"))
			}
		})
	})

	Describe("GetResource", func() {
		It("loads a resource with its rates", func() {
			Expect(testdb.SeedResource(db, "r-1", decimal.NewFromInt(5000), decimal.NewFromInt(35000))).To(Succeed())

			row, rates, err := repo.GetResource(ctx, "r-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Name).To(Equal("account r-1"))
			Expect(rates).To(HaveLen(2))
		})

		It("reports a missing resource", func() {
			_, _, err := repo.GetResource(ctx, "missing")
			Expect(errors.Is(err, errs.ErrResourceNotFound)).To(BeTrue())
		})
	})
})
