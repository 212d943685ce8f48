// Package api provides HTTP handlers for the stream and status endpoints.
package api

// ErrorResponse is the standard error response body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
