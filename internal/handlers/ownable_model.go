package handlers

import (
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/services"
	"github.com/sowailem/ownable/pkg/tracing"
)

// OwnableModelHandler handles ownable type descriptor API endpoints
type OwnableModelHandler struct {
	service *services.OwnableModelService
	logger  ectologger.Logger
}

// NewOwnableModelHandler creates a new ownable model handler
func NewOwnableModelHandler(service *services.OwnableModelService, logger ectologger.Logger) *OwnableModelHandler {
	return &OwnableModelHandler{
		service: service,
		logger:  logger,
	}
}

// CreateOwnableModelRequest represents the create descriptor request body
type CreateOwnableModelRequest struct {
	ModelClass     string   `json:"model_class" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Description    *string  `json:"description,omitempty"`
	ResponseFields []string `json:"response_fields,omitempty"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

// UpdateOwnableModelRequest represents the update descriptor request body
type UpdateOwnableModelRequest struct {
	ModelClass     *string  `json:"model_class,omitempty"`
	Name           *string  `json:"name,omitempty"`
	Description    *string  `json:"description,omitempty"`
	ResponseFields []string `json:"response_fields,omitempty"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

// Register registers ownable model routes
func (h *OwnableModelHandler) Register(g *echo.Group, guard echo.MiddlewareFunc) {
	g.GET("/ownable-models", h.List)
	g.POST("/ownable-models", h.Create, guard)
	g.GET("/ownable-models/:id", h.Get)
	g.PUT("/ownable-models/:id", h.Update, guard)
	g.DELETE("/ownable-models/:id", h.Delete, guard)
}

// List returns a page of descriptors
func (h *OwnableModelHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnableModelHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var filters models.OwnableModelFilters
	if v := c.QueryParam("is_active"); v != "" {
		isActive, err := strconv.ParseBool(v)
		if err != nil {
			return BadRequest("invalid is_active")
		}
		filters.IsActive = &isActive
	}
	page, pageSize := ParsePagination(c)

	result, err := h.service.List(ctx, filters, page, pageSize)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list ownable models")
		return err
	}

	return SuccessResponse(c, result)
}

// Create registers a new descriptor
func (h *OwnableModelHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnableModelHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req CreateOwnableModelRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	descriptor := &models.OwnableModel{
		ModelClass:  req.ModelClass,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	descriptor.ResponseFields.Data = req.ResponseFields
	if req.IsActive != nil {
		descriptor.IsActive = *req.IsActive
	}

	created, err := h.service.Create(ctx, descriptor)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to create ownable model")
		return err
	}

	return CreatedResponse(c, created)
}

// Get returns a descriptor by id
func (h *OwnableModelHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnableModelHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	descriptor, err := h.service.Find(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, descriptor)
}

// Update applies partial changes to a descriptor
func (h *OwnableModelHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnableModelHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateOwnableModelRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	descriptor, err := h.service.Find(ctx, id)
	if err != nil {
		return err
	}

	if req.ModelClass != nil {
		descriptor.ModelClass = *req.ModelClass
	}
	if req.Name != nil {
		descriptor.Name = *req.Name
	}
	if req.Description != nil {
		descriptor.Description = req.Description
	}
	if req.ResponseFields != nil {
		descriptor.ResponseFields.Data = req.ResponseFields
	}
	if req.IsActive != nil {
		descriptor.IsActive = *req.IsActive
	}

	updated, err := h.service.Update(ctx, descriptor)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to update ownable model")
		return err
	}

	return SuccessResponse(c, updated)
}

// Delete removes a descriptor
func (h *OwnableModelHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnableModelHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(ctx, id); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to delete ownable model")
		return err
	}

	return NoContentResponse(c)
}
