package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"go.uber.org/zap"
)

const minPasswordLength = 8

// AuthBackend forwards customer authentication to the backend.
// Satisfied by *backend.Client; narrow interface for testability.
type AuthBackend interface {
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.Response, error)
	Login(ctx context.Context, body json.RawMessage) (*backend.Response, error)
}

// AuthHandler proxies /api/auth to the backend.
type AuthHandler struct {
	backend AuthBackend
	log     *zap.Logger
}

func NewAuthHandler(b AuthBackend, log *zap.Logger) *AuthHandler {
	return &AuthHandler{backend: b, log: log}
}

// RegisterRoutes registers auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req backend.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON in request body", enum.ErrorCodeValidation)
		return
	}
	req = normalizeRegistration(req)

	if errs := validateRegistration(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, failure{Message: "Validation failed", Error: enum.ErrorCodeValidation, Errors: errs})
		return
	}

	resp, err := h.backend.Register(r.Context(), req)
	if err != nil {
		h.log.Warn("register", zap.String("email", req.Email), zap.Error(err))
		writeBackendError(w, err)
		return
	}
	writeRaw(w, resp.Status, resp.Body)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON in request body", enum.ErrorCodeValidation)
		return
	}
	resp, err := h.backend.Login(r.Context(), body)
	if err != nil {
		h.log.Warn("login", zap.Error(err))
		writeBackendError(w, err)
		return
	}
	writeRaw(w, resp.Status, resp.Body)
}

func normalizeRegistration(req backend.RegisterRequest) backend.RegisterRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	req.City = strings.TrimSpace(req.City)
	req.ZipCode = strings.TrimSpace(req.ZipCode)
	return req
}

// validateRegistration returns messages keyed by field, in the backend's
// validation error shape.
func validateRegistration(req backend.RegisterRequest) map[string][]string {
	errs := map[string][]string{}
	required := []struct{ field, value string }{
		{"name", req.Name},
		{"email", req.Email},
		{"password", req.Password},
		{"password_confirmation", req.PasswordConfirmation},
	}
	for _, f := range required {
		if f.value == "" {
			errs[f.field] = append(errs[f.field], "The "+strings.ReplaceAll(f.field, "_", " ")+" field is required.")
		}
	}
	if req.Password != "" && len(req.Password) < minPasswordLength {
		errs["password"] = append(errs["password"], "The password must be at least 8 characters.")
	}
	if req.Password != "" && req.PasswordConfirmation != "" && req.Password != req.PasswordConfirmation {
		errs["password_confirmation"] = append(errs["password_confirmation"], "The password confirmation does not match.")
	}
	return errs
}
