package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parking-status-backend/internal/apperror"
	"parking-status-backend/internal/ledger"
	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/store"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string             `json:"error"`
	Code    apperror.ErrorCode `json:"code"`
	Details any                `json:"details,omitempty"`
}

// toAppError maps domain errors onto the user-facing taxonomy.
func toAppError(err error) *apperror.AppError {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, occupancy.ErrUnknownSpot):
		return apperror.New(apperror.ErrCodeNotFound, "Vaga não encontrada")
	case errors.Is(err, ledger.ErrSessionNotFound):
		return apperror.New(apperror.ErrCodeSessionNotFound, "Sessão não encontrada")
	case errors.Is(err, ledger.ErrMissingSpot):
		return apperror.New(apperror.ErrCodeMissingRequired, "vaga_id é obrigatório")
	case errors.Is(err, ledger.ErrInvalidSpot):
		return apperror.New(apperror.ErrCodeValidation, "vaga_id inválido")
	case errors.Is(err, store.ErrSubscriptionNotFound):
		return apperror.NotFound("subscription")
	case errors.Is(err, occupancy.ErrStoreConflict):
		return apperror.Conflict("spot state changed concurrently, retry")
	default:
		return apperror.Wrap(apperror.ErrCodeInternal, "An unexpected error occurred", err)
	}
}

// writeError renders err as JSON with the status of its code.
func (h *Handler) writeError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Status() >= 500 {
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(appErr.Status(), errorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}
