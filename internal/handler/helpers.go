package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragdex/internal/middleware"
	"github.com/xxxsen/ragdex/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragdex/internal/pkg/errors"
	"github.com/xxxsen/ragdex/internal/pkg/response"
)

func requestID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextRequestIDKey)
	id, _ := value.(string)
	return id
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("request_id", requestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrCollectionNotFound):
		response.Error(c, errcode.ErrCollectionNotFound, err.Error())
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrDimensionMismatch):
		response.Error(c, errcode.ErrDimensionMismatch, err.Error())
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrProviderUnavailable):
		response.Error(c, errcode.ErrProviderUnavailable, "embedding provider unavailable")
	case errors.Is(err, appErr.ErrScoringUnavailable):
		response.Error(c, errcode.ErrScoringUnavailable, "scoring provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
