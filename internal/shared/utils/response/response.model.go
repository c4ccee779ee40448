package response

import "roomly/internal/domain"

type StandardApiResponse struct {
	Status     string      `json:"status"`           // "success" or "error"
	StatusCode int         `json:"status_code"`      // HTTP status code
	Message    string      `json:"message"`          // Human-readable message
	Data       interface{} `json:"data,omitempty"`   // Payload for success
	Errors     interface{} `json:"errors,omitempty"` // Validation or error details
}

// ErrorDetail is the errors payload of a failed engine call
type ErrorDetail struct {
	Code       string             `json:"code"`
	Conflict   *domain.Conflict   `json:"conflict,omitempty"`
	Resolution *domain.Resolution `json:"resolution,omitempty"`
}
