package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openexam/openexam-backend/internal/response"
	"github.com/openexam/openexam-backend/internal/service"
)

// failFromService maps typed service errors onto the response envelope. The
// service message is surfaced for state and pool errors, where the detail is
// the point; everything else keeps the code's canned message.
func failFromService(c *gin.Context, err error) {
	var (
		notFound     *service.NotFoundError
		invalidState *service.InvalidStateError
		validation   *service.ValidationError
		pool         *service.InsufficientPoolError
	)

	switch {
	case errors.As(err, &notFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.As(err, &pool):
		response.FailWithMessage(c, http.StatusUnprocessableEntity, response.ErrInsufficientPool, pool.Error())
	case errors.As(err, &invalidState):
		response.FailWithMessage(c, http.StatusConflict, response.ErrInvalidState, invalidState.Error())
	case errors.As(err, &validation):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, validation.Error())
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
