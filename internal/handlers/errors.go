package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/weddingdesk/internal/services"
	appErrors "github.com/charlesng35/weddingdesk/pkg/errors"
	"github.com/charlesng35/weddingdesk/pkg/logger"
	"github.com/charlesng35/weddingdesk/pkg/response"
)

// writeError maps workflow errors onto the public error taxonomy.
func writeError(c *gin.Context, err error) {
	response.Error(c, translateError(err))
}

func translateError(err error) *appErrors.AppError {
	var validation *services.ValidationError
	switch {
	case err == nil:
		return appErrors.ErrInternalServer
	case errors.As(err, &validation):
		details := make(map[string]any, len(validation.Fields))
		for field, msg := range validation.Fields {
			details[field] = msg
		}
		return appErrors.ErrValidation.WithDetails(details).WithInternal(err)
	case errors.Is(err, services.ErrValidation):
		return appErrors.ErrValidation.WithInternal(err)
	case errors.Is(err, services.ErrNotFound):
		return appErrors.ErrNotFound.WithMessage("No inquiry matches this link").WithInternal(err)
	case errors.Is(err, services.ErrAlreadyAccepted):
		return appErrors.NewConflict("This offer has already been accepted").WithInternal(err)
	case errors.Is(err, services.ErrConflict):
		return appErrors.NewConflict("This inquiry is no longer pending").WithInternal(err)
	case errors.Is(err, services.ErrDeliveryFailed):
		return appErrors.ErrDeliveryFailed.WithInternal(err)
	}

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	logger.WithModule("http").Error("unhandled request error", zap.Error(err))
	return appErrors.ErrInternalServer.WithInternal(err)
}
