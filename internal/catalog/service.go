package catalog

import (
	"context"
	"log/slog"

	errs "github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/core/datamodel/resource"
)

type RepositoryAPI interface {
	ListResources(ctx context.Context) ([]resource.Resource, []resource.Rate, error)
	GetResource(ctx context.Context, id string) (*resource.Resource, []resource.Rate, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ListRentable returns the active resources that carry at least one rate.
func (s *Service) ListRentable(ctx context.Context) ([]*Resource, error) {
	rows, rates, err := s.repo.ListResources(ctx)
	if err != nil {
		s.logger.Error("failed to list resources", "error", err)
		return nil, err
	}

	out := make([]*Resource, 0, len(rows))
	for i := range rows {
		r := FromDataModel(&rows[i], rates)
		if r.Rentable() {
			out = append(out, r)
		}
	}

	s.logger.Debug("listed rentable resources", "count", len(out))
	return out, nil
}

func (s *Service) GetRentable(ctx context.Context, id string) (*Resource, error) {
	row, rates, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	r := FromDataModel(row, rates)
	if !r.Rentable() {
		return nil, errs.ErrResourceNotFound
	}
	return r, nil
}
