package whatsapp

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the access token or phone number id
// is missing. No request is made in that case.
var ErrNotConfigured = errors.New("whatsapp: client not configured")

// APIError is a non-2xx answer from the messages endpoint. The provider's
// error object is decoded when the body carries one.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       int    `json:"code,omitempty"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message,omitempty"`
	TraceID    string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp API error %d", e.StatusCode)
	}
	return fmt.Sprintf("whatsapp API error %d: %s (code %d, trace %s)", e.StatusCode, e.Message, e.Code, e.TraceID)
}

type errorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
