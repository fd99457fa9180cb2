// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints,
// including structured error envelopes, consistent JSON serialization, and
// helpers for common HTTP patterns. The goal is to guarantee uniform responses
// for both success and failure cases, making the API predictable and
// machine-friendly.
//
// Conventions:
//   - All error responses must return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx responses
//     are logged with request context for observability.
//   - `ok()` and `noContent()` simplify writing success responses in a consistent
//     shape across handlers.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "resource not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "id": "abc123", "username": "alice", "created_at": "2024-05-01T10:00:00Z" }
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/http/middleware"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: Optional correlation ID, echoed from X-Request-ID header, used
//     to correlate server logs with client-side errors.
//   - Code: A stable, machine-readable string (see errors.go constants).
//   - Message: A human-readable error description, safe for display to users.
//
// This struct is used in OpenAPI documentation via Swagger annotations.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It constructs an ErrorResponse, writes it as JSON with the given HTTP status,
// and calls gin.Context.AbortWithStatusJSON to stop further processing.
//
// Server errors (>=500) are logged using the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error to its HTTP status and code. Errors the
// service layer does not name fall back to 500 with fallbackCode.
func failErr(c *gin.Context, err error, fallbackCode string) {
	status, code := classify(err, fallbackCode)
	msg := err.Error()
	if status >= http.StatusInternalServerError && code != ErrCodePartialWrite {
		_ = c.Error(err)
		msg = "internal error"
	}
	fail(c, status, code, msg)
}

func classify(err error, fallbackCode string) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, services.ErrSelfFollow):
		return http.StatusBadRequest, ErrCodeSelfFollow
	case errors.Is(err, services.ErrMalformedParameter):
		return http.StatusBadRequest, ErrCodeMalformedParameter
	case errors.Is(err, domain.ErrUnknownStatus):
		return http.StatusBadRequest, ErrCodeUnknownStatus
	case errors.Is(err, services.ErrEmptyText), errors.Is(err, services.ErrTooLong):
		return http.StatusBadRequest, ErrCodeInvalidText
	case errors.Is(err, services.ErrInvalidUsername):
		return http.StatusBadRequest, ErrCodeInvalidUsername
	case errors.Is(err, services.ErrInvalidID), errors.Is(err, docstore.ErrInvalidPath):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, services.ErrReplyNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrPartialEdge):
		// one copy landed; a retry heals the pair
		return http.StatusServiceUnavailable, ErrCodePartialWrite
	}
	return http.StatusInternalServerError, fallbackCode
}

// ok writes a success JSON response.
//
// It serializes `body` as JSON with the given HTTP status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// okTagged writes body with a weak ETag over its encoding, or 304 when
// If-None-Match already holds that tag. The tag covers exactly the page
// served, so no extra collection read is needed.
func okTagged(c *gin.Context, scope string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	etag := fmt.Sprintf(`W/"%s:%016x"`, scope, xxhash.Sum64(raw))
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// noContent writes an HTTP 204 No Content response.
//
// Used when the operation succeeds but there is no response body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
