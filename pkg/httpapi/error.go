package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flotatrack/fleet-assistant/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteCodedError writes err using its serrors code when it has one and
// falls back to fallbackCode otherwise. Messages of uncoded errors are not
// exposed.
func WriteCodedError(w http.ResponseWriter, status int, err error, fallbackCode string) error {
	var base *serrors.Base
	if errors.As(err, &base) {
		return WriteError(w, status, base.Code, base.Message, nil)
	}
	return WriteError(w, status, fallbackCode, http.StatusText(status), nil)
}
