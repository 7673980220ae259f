package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aptrec/internal/interfaces/http/middleware"
	"github.com/turtacn/aptrec/pkg/errors"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse wraps ErrorBody under "error".
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// writeError maps err onto its status and the standard error body. Errors
// without a code are reported as internal with their text masked.
func writeError(c *gin.Context, err error) {
	body := ErrorBody{RequestID: middleware.GetRequestID(c)}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		code := errors.GetCode(err)
		body.Code = string(code)
		body.Message = appErr.Message
		body.Detail = appErr.Detail
		_ = c.Error(err)
		c.AbortWithStatusJSON(errors.HTTPStatusForCode(code), ErrorResponse{Error: body})
		return
	}

	body.Code = string(errors.ErrCodeInternal)
	body.Message = "internal server error"
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: body})
}

// optionalFloat parses query parameter name; ok is false when it is absent.
func optionalFloat(c *gin.Context, name string) (v float64, ok bool, err error) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errors.InvalidParam("query parameter must be a number").WithDetail(name + "=" + raw)
	}
	return v, true, nil
}

func optionalInt(c *gin.Context, name string) (int, error) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidParam("query parameter must be an integer").WithDetail(name + "=" + raw)
	}
	return v, nil
}

//Personal.AI order the ending
