package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errs "github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/catalog"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
)

type stubRepo struct {
	rows  []resource.Resource
	rates []resource.Rate
	err   error
}

func (s *stubRepo) ListResources(context.Context) ([]resource.Resource, []resource.Rate, error) {
	return s.rows, s.rates, s.err
}

func (s *stubRepo) GetResource(_ context.Context, id string) (*resource.Resource, []resource.Rate, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], s.rates, nil
		}
	}
	return nil, nil, errs.ErrResourceNotFound
}

var _ = Describe("Catalog Service", func() {
	var (
		repo    *stubRepo
		service *catalog.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &stubRepo{
			rows: []resource.Resource{
				{ID: "a", Name: "A", IsActive: true},
				{ID: "b", Name: "B", IsActive: true},
			},
			rates: []resource.Rate{
				{ResourceID: "a", DurationType: "DAILY", MainValuePerUnit: decimal.NewFromInt(100)},
				{ResourceID: "a", DurationType: "HOURLY", MainValuePerUnit: decimal.NewFromInt(10)},
			},
		}
		service = catalog.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	It("drops resources without rates", func() {
		out, err := service.ListRentable(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].ID).To(Equal("a"))
		Expect(out[0].Rates[0].DurationType).To(Equal("HOURLY"))
	})

	It("keeps rates attached to their own resource", func() {
		r, err := service.GetRentable(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Rates).To(HaveLen(2))

		_, err = service.GetRentable(ctx, "b")
		Expect(errors.Is(err, errs.ErrResourceNotFound)).To(BeTrue())
	})

	It("passes repository failures through", func() {
		repo.err = errors.New("db down")
		_, err := service.ListRentable(ctx)
		Expect(err).To(MatchError("db down"))
	})
})
