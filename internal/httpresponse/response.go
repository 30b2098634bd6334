package httpresponse

import (
	"encoding/json"
	"fmt"
	"net/http"

	errs "covid_slayer/internal/errors"
)

// Payload is a flat response body. WriteOK adds "success": true to it.
type Payload map[string]any

type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  []errs.FieldError `json:"errors,omitempty"`
}

const INTERNALERRORJSON = `{"success":false,"message":"Internal server error"}`

const MALFORMEDJSON_errorDesc = "json unmarshalling error"

func WriteResponseWithStatus(w http.ResponseWriter, status int, body any) {
	jsonByte, err := json.Marshal(body)
	if err != nil {
		WriteInternalErrorResponse(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonByte)
}

func WriteOK(w http.ResponseWriter, status int, body Payload) {
	if body == nil {
		body = Payload{}
	}
	body["success"] = true
	WriteResponseWithStatus(w, status, body)
}

func WriteMessage(w http.ResponseWriter, status int, message string) {
	if status < http.StatusBadRequest {
		WriteOK(w, status, Payload{"message": message})
		return
	}
	WriteResponseWithStatus(w, status, ErrorResponse{Message: message})
}

func WriteValidationError(w http.ResponseWriter, v *errs.ValidationError) {
	WriteResponseWithStatus(w, http.StatusBadRequest, ErrorResponse{
		Message: "Validation failed",
		Errors:  v.Fields,
	})
}

func WriteInternalErrorResponse(w http.ResponseWriter) {
	// implementation similar to http.Error, only difference is the Content-type
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintln(w, INTERNALERRORJSON)
}
