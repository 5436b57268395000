package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krekz/maulocum-sub000/internal/domain"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidState, domain.KindInvalidInput,
		domain.KindAlreadyClosed, domain.KindNothingToComplete:
		return http.StatusBadRequest
	case domain.KindExpired, domain.KindAlreadyUsed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorKind `json:"code"`
}

func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	c.AbortWithStatusJSON(statusFor(kind), errorBody{
		Error: domain.MessageOf(err),
		Code:  kind,
	})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Error: msg,
		Code:  domain.KindInvalidInput,
	})
}
