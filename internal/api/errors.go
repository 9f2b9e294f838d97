package api

import (
	"encoding/json"
	"net/http"

	"github.com/GoldCode001/vela/internal/errors"
	"github.com/GoldCode001/vela/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Success bool               `json:"success"`
	Error   types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondServiceError maps a categorized error to the wire format. Raw
// upstream payloads never leak; only the categorized message and details go
// out.
func respondServiceError(w http.ResponseWriter, err error) {
	categorized := errors.Categorize(err)
	respondError(w, categorized.StatusCode, categorized.Code, categorized.Message, categorized.Details)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
