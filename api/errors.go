package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/viktsys/tdingest/models"
)

// APIError is the JSON body of every error response.
type APIError struct {
	StatusCode int           `json:"status_code"`
	ErrorCode  string        `json:"error_code"`
	Message    string        `json:"message"`
	Details    *ErrorDetails `json:"details,omitempty"`
}

type ErrorDetails struct {
	Field string      `json:"field,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

var errorCodes = []struct {
	kind   error
	status int
	code   string
}{
	{models.ErrInvalidCategory, http.StatusUnprocessableEntity, "INVALID_CATEGORY"},
	{models.ErrInvalidMonth, http.StatusUnprocessableEntity, "INVALID_MONTH"},
	{models.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrConflict, http.StatusConflict, "CONFLICT"},
}

// toAPIError maps domain and binding errors to a response. Anything it does
// not recognise is an internal error and its message is not exposed.
func toAPIError(err error) *APIError {
	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		for _, ec := range errorCodes {
			if errors.Is(err, ec.kind) {
				return &APIError{
					StatusCode: ec.status,
					ErrorCode:  ec.code,
					Message:    domainErr.Error(),
					Details:    &ErrorDetails{Field: domainErr.Field, Value: domainErr.Value},
				}
			}
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "INVALID_ARGUMENT",
			Message:    fmt.Sprintf("field %s failed the %q rule", fe.Field(), fe.Tag()),
			Details:    &ErrorDetails{Field: fe.Field(), Value: fe.Value()},
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return &APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "INVALID_ARGUMENT",
			Message:    fmt.Sprintf("field %s has the wrong type", typeErr.Field),
			Details:    &ErrorDetails{Field: typeErr.Field},
		}
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "INVALID_ARGUMENT", Message: "malformed JSON body"}
	}

	return &APIError{StatusCode: http.StatusInternalServerError, ErrorCode: "INTERNAL_ERROR", Message: "internal server error"}
}

func (h *Handler) fail(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", requestID(c)).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
}
