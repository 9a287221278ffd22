package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/birchwood-sourdough/orders/apperr"
)

type JSONResponse struct {
	Status    bool        `json:"status"`
	Message   string      `json:"message"`
	Kind      apperr.Kind `json:"kind,omitempty"`
	Code      string      `json:"code,omitempty"`
	Remaining *int        `json:"remaining,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondError writes err using the status of its kind. Untyped errors become a generic
// internal error; the cause is attached to the context for the request logger only.
func RespondError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}
	if e.Err != nil {
		_ = c.Error(e)
	}
	c.JSON(StatusFor(e), JSONResponse{
		Status:    false,
		Message:   e.Message,
		Kind:      e.Kind,
		Code:      e.Code,
		Remaining: e.Remaining,
	})
}

// AbortWithError responds with err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	RespondError(c, err)
	c.Abort()
}

func StatusFor(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindCapacityExceeded:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuth:
		if e.Code == CodeRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusUnauthorized
	case apperr.KindUpstream:
		return http.StatusBadGateway
	case apperr.KindOrderingClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const CodeRateLimited = "rate_limited"
