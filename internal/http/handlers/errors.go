// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., self_follow, malformed_parameter) are reserved for
//     business rule violations that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "self_follow",
//	  "message": "cannot follow yourself"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeMalformedParameter = "malformed_parameter"
	ErrCodeSelfFollow         = "self_follow"
	ErrCodeUnknownStatus      = "unknown_status"
	ErrCodeInvalidText        = "invalid_text"
	ErrCodeInvalidUsername    = "invalid_username"
	ErrCodePartialWrite       = "partial_write"
	ErrCodeWriteFailed        = "write_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeStreamFailed       = "stream_failed"
)
