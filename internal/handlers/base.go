package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// ParseID parses a numeric identifier from a path parameter
func ParseID(c echo.Context, param string) (int64, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a positive integer", param)
	}

	return id, nil
}

// ParsePagination reads page and page_size query parameters with defaults
func ParsePagination(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	pageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}
