package response

import (
	"supplychain/internal/apperror"

	"github.com/gin-gonic/gin"
)

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Code       string      `json:"code,omitempty"`   // machine-readable error code
	Detail     string      `json:"detail,omitempty"` // human-readable error message
}

// Page wraps a paginated list
type Page struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error code and message
func Error(statusCode int, code, detail string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Code:       code,
		Detail:     detail,
	}
}

// FromError builds the error envelope for err
func FromError(err error) Response {
	return Error(apperror.StatusCode(err), apperror.Code(err), apperror.Message(err))
}

// Abort writes the error envelope and stops the handler chain
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	resp := FromError(err)
	c.AbortWithStatusJSON(resp.StatusCode, resp)
}

// OK writes a success envelope
func OK(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Success(statusCode, data))
}
