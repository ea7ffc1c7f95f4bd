package services

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/registry"
	"github.com/sowailem/ownable/pkg/repositories"
	"github.com/sowailem/ownable/pkg/tracing"
)

// OwnableModelService manages the dynamic ownable-type descriptors. Every
// mutation invalidates the registry snapshot so the next read rebuilds it.
type OwnableModelService struct {
	logger   ectologger.Logger
	repo     repositories.OwnableModelRepo
	registry *registry.Registry
}

// NewOwnableModelService creates a new ownable model service
func NewOwnableModelService(logger ectologger.Logger, repo repositories.OwnableModelRepo, reg *registry.Registry) *OwnableModelService {
	return &OwnableModelService{
		logger:   logger,
		repo:     repo,
		registry: reg,
	}
}

// Create registers a new descriptor.
func (s *OwnableModelService) Create(ctx context.Context, descriptor *models.OwnableModel) (*models.OwnableModel, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelService.Create")
	defer span.End()

	if descriptor.ModelClass == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "model_class is required")
	}
	if descriptor.Name == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	if err := s.repo.Create(ctx, descriptor); err != nil {
		return nil, err
	}

	s.registry.Invalidate(ctx)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"ownable_model_id": descriptor.ID,
		"model_class":      descriptor.ModelClass,
	}).Info("ownable model created")

	return descriptor, nil
}

// Find returns the descriptor or a not found error.
func (s *OwnableModelService) Find(ctx context.Context, id int64) (*models.OwnableModel, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelService.Find")
	defer span.End()

	descriptor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if descriptor == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "ownable model not found")
	}
	return descriptor, nil
}

// List returns a page of descriptors.
func (s *OwnableModelService) List(ctx context.Context, filters models.OwnableModelFilters, page, pageSize int) (*models.OwnableModelListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelService.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	descriptors, total, err := s.repo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.OwnableModelListResponse{
		Items:      descriptors,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Update applies the changed fields onto the stored descriptor.
func (s *OwnableModelService) Update(ctx context.Context, descriptor *models.OwnableModel) (*models.OwnableModel, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelService.Update")
	defer span.End()

	if descriptor.ID == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	if descriptor.ModelClass == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "model_class is required")
	}

	if err := s.repo.Update(ctx, descriptor); err != nil {
		return nil, err
	}

	s.registry.Invalidate(ctx)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"ownable_model_id": descriptor.ID,
		"model_class":      descriptor.ModelClass,
	}).Info("ownable model updated")

	return descriptor, nil
}

// Delete removes the descriptor. Ledger rows referencing its model class
// are untouched.
func (s *OwnableModelService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelService.Delete")
	defer span.End()

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, "ownable model not found")
	}

	s.registry.Invalidate(ctx)
	s.logger.WithContext(ctx).WithFields(map[string]any{"ownable_model_id": id}).Info("ownable model deleted")
	return nil
}
