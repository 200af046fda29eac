package handler

import (
	"encoding/json"
	"net/http"

	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"go.uber.org/zap"
)

// failure is the error envelope of every storefront and proxy route.
type failure struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message"`
	Error    string              `json:"error,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode JSON response", zap.Error(err))
	}
}

func writeFailure(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, failure{Message: message, Error: code})
}

// writeBackendError answers with the status and code carried by a
// *backend.Error, or a generic 500.
func writeBackendError(w http.ResponseWriter, err error) {
	if be, ok := backend.AsError(err); ok {
		writeJSON(w, be.Status, failure{Message: be.Message, Error: be.Code, Errors: be.Fields})
		return
	}
	writeFailure(w, http.StatusInternalServerError, "Internal server error", enum.ErrorCodeInternal)
}

// relay passes a successful upstream body through unchanged with okStatus,
// and turns a non-2xx answer into a failure envelope with the upstream status.
func relay(w http.ResponseWriter, resp *backend.Response, okStatus int, fallback string) {
	if !resp.OK() {
		msg := resp.Message()
		if msg == "" {
			msg = fallback
		}
		writeJSON(w, resp.Status, failure{Message: msg, Errors: resp.Fields()})
		return
	}
	writeRaw(w, okStatus, resp.Body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
