package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// jsonModeKey marks requests that get the JSON envelope instead of HTML
// fragments
const jsonModeKey = "pos_json_mode"

const htmlContentType = "text/html; charset=utf-8"

// JSONResponses switches every handler in the group to JSON responses.
// It is installed on the /api/v1 group.
func JSONResponses() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(jsonModeKey, true)
		c.Next()
	}
}

// wantsJSON reports whether the response should be the dto envelope
func wantsJSON(c *gin.Context) bool {
	if c.GetBool(jsonModeKey) {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HTML writes a rendered fragment
func (h *BaseHandler) HTML(c *gin.Context, status int, body string) {
	c.Data(status, htmlContentType, []byte(body))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unavailable sends a 503 response for a dependency that is down
func (h *BaseHandler) Unavailable(c *gin.Context, message string) {
	h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ErrorStatus maps err to the status and code it is reported with
func ErrorStatus(err error) (int, string, string) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		return dto.GetHTTPStatus(code), code, domainErr.Message
	}
	return http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"
}

// HandleError is a generic error handler that handles both domain and
// standard errors
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, message := ErrorStatus(err)
	h.Error(c, status, code, message)
}

// BindJSON binds an optional JSON body. An empty body leaves req untouched.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}
