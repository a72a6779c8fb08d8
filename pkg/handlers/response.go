package handlers

import (
	"encoding/json"
	"net/http"

	"sharednotes/pkg/errors"
)

// envelope is the body of every facade response
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Loading bool        `json:"loading"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data interface{}, loading bool) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data, Loading: loading})
}

// writeError renders err with the status matching its type. Services log
// their own failures.
func writeError(w http.ResponseWriter, err error) {
	fe := errors.ToFrontendError(err)
	writeJSON(w, statusFor(err), envelope{Success: false, Message: fe.Message, Data: fe})
}

func statusFor(err error) int {
	appErr, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case errors.ErrNoteNotFound.Code, errors.ErrWriteNotFound.Code:
		return http.StatusNotFound
	case errors.ErrPermissionDenied.Code:
		return http.StatusForbidden
	}

	switch appErr.Type {
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeAuth:
		return http.StatusUnauthorized
	case errors.ErrTypeBusiness:
		if status, ok := appErr.Context["status"].(int); ok && status >= 400 && status < 500 {
			return status
		}
		return http.StatusBadRequest
	case errors.ErrTypeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into into, answering 400 when it is malformed
func decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrTypeValidation, "INVALID_JSON", "request body is not valid JSON").
			WithUserMessage("Invalid JSON"))
		return false
	}
	return true
}
