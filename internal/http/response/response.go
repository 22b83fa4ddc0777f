package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps an apperr code onto an HTTP status. Internal errors
// keep their message out of the response.
func RespondAppError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError && code != apperr.CodeUpstream {
		_ = c.Error(err)
		RespondError(c, status, string(apperr.CodeInternal), errors.New("internal error"))
		return
	}
	if code == "" {
		code = apperr.CodeInternal
	}
	RespondError(c, status, string(code), err)
}

func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict, apperr.CodeDuplicate:
		return http.StatusConflict
	case apperr.CodeUpstream, apperr.CodeLowConfidence, apperr.CodeInvalidCoordinate:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
