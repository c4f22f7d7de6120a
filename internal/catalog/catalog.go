package catalog

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
)

// Resource is a rentable account together with its price list.
type Resource struct {
	ID        string
	Name      string
	IsActive  bool
	Rates     []Rate
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Rate struct {
	DurationType       string
	MainValuePerUnit   decimal.Decimal
	OthersValuePerUnit decimal.Decimal
}

func (r *Resource) Rentable() bool {
	return r.IsActive && len(r.Rates) > 0
}

func (r *Resource) ToResponse() ResourceResponse {
	rates := make([]RateResponse, 0, len(r.Rates))
	for _, rate := range r.Rates {
		rates = append(rates, RateResponse{
			DurationType:       rate.DurationType,
			MainValuePerUnit:   rate.MainValuePerUnit.StringFixed(2),
			OthersValuePerUnit: rate.OthersValuePerUnit.StringFixed(2),
		})
	}
	return ResourceResponse{
		ID:    r.ID,
		Name:  r.Name,
		Rates: rates,
	}
}

// FromDataModel joins a resource row with its rate rows. Rates for other resources are ignored.
func FromDataModel(res *resource.Resource, rates []resource.Rate) *Resource {
	out := &Resource{
		ID:        res.ID,
		Name:      res.Name,
		IsActive:  res.IsActive,
		CreatedAt: res.CreatedAt,
		UpdatedAt: res.UpdatedAt,
	}
	for _, rate := range rates {
		if rate.ResourceID != res.ID {
			continue
		}
		out.Rates = append(out.Rates, Rate{
			DurationType:       rate.DurationType,
			MainValuePerUnit:   rate.MainValuePerUnit,
			OthersValuePerUnit: rate.OthersValuePerUnit,
		})
	}
	sort.Slice(out.Rates, func(i, j int) bool {
		return out.Rates[i].DurationType > out.Rates[j].DurationType
	})
	return out
}
