package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"github.com/oppa-kitchen/storefront/internal/middleware"
	"go.uber.org/zap"
)

// OrderBackend forwards order requests to the backend.
// Satisfied by *backend.Client; narrow interface for testability.
type OrderBackend interface {
	ListOrders(ctx context.Context, authorization string, query url.Values) (*backend.Response, error)
	SubmitOrder(ctx context.Context, authorization string, body json.RawMessage) (*backend.Response, error)
	GetOrder(ctx context.Context, authorization, id string) (*backend.Response, error)
	UpdateOrderStatus(ctx context.Context, authorization, id, status string) (*backend.Response, error)
}

// OrderHandler proxies /api/orders to the backend.
type OrderHandler struct {
	backend OrderBackend
	log     *zap.Logger
}

func NewOrderHandler(b OrderBackend, log *zap.Logger) *OrderHandler {
	return &OrderHandler{backend: b, log: log}
}

// RegisterRoutes registers order proxy endpoints. Every route needs an
// Authorization header.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireBearer)
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.UpdateStatus)
	r.Put("/{id}", h.UpdateStatus)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	h.log.Debug("list orders", zap.String("token", backend.MaskToken(auth)), zap.String("query", r.URL.RawQuery))

	resp, err := h.backend.ListOrders(r.Context(), auth, r.URL.Query())
	if err != nil {
		h.upstreamFailed(w, "list orders", err)
		return
	}
	relay(w, resp, http.StatusOK, "Failed to fetch orders")
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON in request body", enum.ErrorCodeValidation)
		return
	}
	h.log.Debug("create order", zap.String("token", backend.MaskToken(auth)))

	resp, err := h.backend.SubmitOrder(r.Context(), auth, body)
	if err != nil {
		h.upstreamFailed(w, "create order", err)
		return
	}
	relay(w, resp, http.StatusCreated, "Failed to create order")
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	resp, err := h.backend.GetOrder(r.Context(), auth, chi.URLParam(r, "id"))
	if err != nil {
		h.upstreamFailed(w, "get order", err)
		return
	}
	relay(w, resp, http.StatusOK, "Failed to fetch order")
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON in request body", enum.ErrorCodeValidation)
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		writeFailure(w, http.StatusBadRequest, "Status is required", enum.ErrorCodeValidation)
		return
	}
	if !enum.IsOrderStatus(req.Status) {
		writeFailure(w, http.StatusBadRequest, "Invalid status value", enum.ErrorCodeValidation)
		return
	}

	h.log.Info("update order status",
		zap.String("order_id", id),
		zap.String("status", req.Status),
		zap.String("token", backend.MaskToken(auth)),
	)
	resp, err := h.backend.UpdateOrderStatus(r.Context(), auth, id, req.Status)
	if err != nil {
		h.upstreamFailed(w, "update order status", err)
		return
	}
	relay(w, resp, http.StatusOK, "Failed to update order")
}

func (h *OrderHandler) upstreamFailed(w http.ResponseWriter, op string, err error) {
	h.log.Warn(op, zap.Error(err))
	writeBackendError(w, err)
}
