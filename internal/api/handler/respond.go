package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
)

// respondError translates the service error taxonomy into the failure
// envelope: validation errors map to 400, missing resources to 404,
// everything else to 500.
func respondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var notFoundErr *service.NotFoundError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	}

	c.JSON(status, dto.Error(err.Error()))
}

// detachedContext strips the request's cancellation so a backup or restore
// run keeps going when the client disconnects mid-run.
func detachedContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// pageParams reads the page/per_page query parameters with the list defaults.
func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "25"))
	return page, perPage
}

// paginationInfo computes the page arithmetic of one list response.
func paginationInfo(total, page, perPage int) dto.PaginationInfo {
	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
