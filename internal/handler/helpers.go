package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/middleware"
	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
	switch {
	case appErr.IsUpstream(err):
		logger.Error("upstream provider failed", zap.Error(err))
	case errors.Is(err, appErr.ErrInvalid), errors.Is(err, appErr.ErrNotReady):
		logger.Warn("request rejected", zap.Error(err))
	default:
		logger.Error("request failed", zap.Error(err))
	}
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrNotReady):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrNotReady, "service is not ready")
	case errors.Is(err, appErr.ErrRetrieval):
		response.Error(c, http.StatusBadGateway, errcode.ErrRetrieval, "retrieval failed")
	case errors.Is(err, appErr.ErrEmbedding):
		response.Error(c, http.StatusBadGateway, errcode.ErrEmbedding, "embedding provider failed")
	case errors.Is(err, appErr.ErrGeneration):
		response.Error(c, http.StatusBadGateway, errcode.ErrGeneration, "language model failed")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
