package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/services"
	"github.com/sowailem/ownable/pkg/tracing"
)

var validate = validator.New()

// OwnershipHandler handles ownership ledger API endpoints
type OwnershipHandler struct {
	service *services.OwnershipService
	logger  ectologger.Logger
}

// NewOwnershipHandler creates a new ownership handler
func NewOwnershipHandler(service *services.OwnershipService, logger ectologger.Logger) *OwnershipHandler {
	return &OwnershipHandler{
		service: service,
		logger:  logger,
	}
}

// GiveRequest represents the give (and create) request body
type GiveRequest struct {
	OwnerID     int64  `json:"owner_id" validate:"required,gt=0"`
	OwnerType   string `json:"owner_type" validate:"required"`
	OwnableID   int64  `json:"ownable_id" validate:"required,gt=0"`
	OwnableType string `json:"ownable_type" validate:"required"`
}

// TransferRequest represents the transfer request body
type TransferRequest struct {
	FromOwnerID   int64  `json:"from_owner_id" validate:"required,gt=0"`
	FromOwnerType string `json:"from_owner_type" validate:"required"`
	ToOwnerID     int64  `json:"to_owner_id" validate:"required,gt=0"`
	ToOwnerType   string `json:"to_owner_type" validate:"required"`
	OwnableID     int64  `json:"ownable_id" validate:"required,gt=0"`
	OwnableType   string `json:"ownable_type" validate:"required"`
}

// OwnablePairRequest identifies an ownable entity
type OwnablePairRequest struct {
	OwnableID   int64  `json:"ownable_id" validate:"required,gt=0"`
	OwnableType string `json:"ownable_type" validate:"required"`
}

// MessageResponse wraps a mutation result with a human readable message
type MessageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Register registers ownership routes
func (h *OwnershipHandler) Register(g *echo.Group, guard echo.MiddlewareFunc) {
	g.GET("/ownerships", h.List)
	g.POST("/ownerships", h.Give, guard)
	g.POST("/ownerships/give", h.Give, guard)
	g.POST("/ownerships/transfer", h.Transfer, guard)
	g.POST("/ownerships/check", h.Check)
	g.POST("/ownerships/remove", h.Remove, guard)
	g.POST("/ownerships/current", h.Current)
}

// List returns a filtered page of ledger rows
func (h *OwnershipHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnershipHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	filters, err := parseOwnershipFilters(c)
	if err != nil {
		return err
	}
	page, pageSize := ParsePagination(c)

	result, err := h.service.List(ctx, filters, page, pageSize)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list ownerships")
		return err
	}

	return SuccessResponse(c, result)
}

// Give records a new current owner for the ownable pair
func (h *OwnershipHandler) Give(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnershipHandler.Give")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req GiveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	ownership, err := h.service.Give(ctx, req.OwnerID, req.OwnerType, req.OwnableID, req.OwnableType)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to give ownership")
		return err
	}

	return CreatedResponse(c, MessageResponse{
		Message: "Ownership granted successfully",
		Data:    ownership,
	})
}

// Transfer moves the ownable pair to a new owner
func (h *OwnershipHandler) Transfer(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnershipHandler.Transfer")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	ownership, err := h.service.Transfer(ctx, services.TransferInput{
		FromOwnerID:   req.FromOwnerID,
		FromOwnerType: req.FromOwnerType,
		ToOwnerID:     req.ToOwnerID,
		ToOwnerType:   req.ToOwnerType,
		OwnableID:     req.OwnableID,
		OwnableType:   req.OwnableType,
	})
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to transfer ownership")
		return err
	}

	return SuccessResponse(c, MessageResponse{
		Message: "Ownership transferred successfully",
		Data:    ownership,
	})
}

// Check reports whether the owner currently owns the ownable pair
func (h *OwnershipHandler) Check(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnershipHandler.Check")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req GiveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	owns, err := h.service.Check(ctx, req.OwnerID, req.OwnerType, req.OwnableID, req.OwnableType)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to check ownership")
		return err
	}

	return SuccessResponse(c, map[string]any{"owns": owns})
}

// Remove clears the current owner of the ownable pair
func (h *OwnershipHandler) Remove(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnershipHandler.Remove")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req OwnablePairRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	removed, err := h.service.Remove(ctx, req.OwnableID, req.OwnableType)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to remove ownership")
		return err
	}

	message := "Ownership removed successfully"
	if !removed {
		message = "No current ownership to remove"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": message,
		"success": removed,
	})
}

// Current returns the current owner of the ownable pair, or null
func (h *OwnershipHandler) Current(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OwnershipHandler.Current")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req OwnablePairRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	ownership, err := h.service.Current(ctx, req.OwnableType, req.OwnableID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to get current ownership")
		return err
	}

	var data any
	if ownership != nil {
		if ownership.Owner != nil {
			data = ownership.Owner
		} else {
			data = map[string]any{
				"id":         ownership.OwnerID,
				"owner_type": ownership.OwnerType,
			}
		}
	}

	return SuccessResponse(c, map[string]any{"data": data})
}

func parseOwnershipFilters(c echo.Context) (models.OwnershipFilters, error) {
	var filters models.OwnershipFilters

	if v := c.QueryParam("owner_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, BadRequest("invalid owner_id")
		}
		filters.OwnerID = &id
	}
	if v := c.QueryParam("owner_type"); v != "" {
		filters.OwnerType = &v
	}
	if v := c.QueryParam("ownable_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, BadRequest("invalid ownable_id")
		}
		filters.OwnableID = &id
	}
	if v := c.QueryParam("ownable_type"); v != "" {
		filters.OwnableType = &v
	}
	if v := c.QueryParam("is_current"); v != "" {
		isCurrent, err := strconv.ParseBool(v)
		if err != nil {
			return filters, BadRequest("invalid is_current")
		}
		filters.IsCurrent = &isCurrent
	}

	return filters, nil
}
