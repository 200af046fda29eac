package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"github.com/oppa-kitchen/storefront/internal/menu"
	"github.com/oppa-kitchen/storefront/internal/middleware"
	"go.uber.org/zap"
)

// CartProvider returns the store for a cart session. Peek serves reads
// without registering a new session.
// Satisfied by *cart.Registry; narrow interface for testability.
type CartProvider interface {
	Get(ctx context.Context, cartID uuid.UUID) (*cart.Store, error)
	Peek(ctx context.Context, cartID uuid.UUID) (*cart.Store, error)
}

// CartHandler serves the cart of the caller's cart session.
type CartHandler struct {
	carts CartProvider
	log   *zap.Logger
}

func NewCartHandler(carts CartProvider, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

// RegisterRoutes registers cart endpoints. Expects middleware.CartSession
// upstream.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateQuantity)
	r.Delete("/items/{id}", h.RemoveItem)
}

// --- Response types ---

type lineItemResponse struct {
	ID           menu.ID `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        string  `json:"price"`
	Category     string  `json:"category"`
	Image        string  `json:"image"`
	IsSpicy      bool    `json:"is_spicy"`
	IsVegetarian bool    `json:"is_vegetarian"`
	Quantity     int     `json:"quantity"`
	Subtotal     string  `json:"subtotal"`
}

// CartResponse is the cart as sent to clients, over HTTP and WebSocket.
type CartResponse struct {
	Items     []lineItemResponse `json:"items"`
	Total     string             `json:"total"`
	ItemCount int                `json:"item_count"`
}

// NewCartResponse builds the response for one consistent set of items.
func NewCartResponse(items []cart.LineItem) CartResponse {
	view := cart.NewView(items)
	resp := CartResponse{
		Items:     make([]lineItemResponse, 0, len(view.Items)),
		Total:     view.Total.StringFixed(2),
		ItemCount: view.ItemCount,
	}
	for _, it := range view.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ID:           it.ID,
			Name:         it.Name,
			Description:  it.Description,
			Price:        it.Price.StringFixed(2),
			Category:     it.Category,
			Image:        it.Image,
			IsSpicy:      it.IsSpicy,
			IsVegetarian: it.IsVegetarian,
			Quantity:     it.Quantity,
			Subtotal:     it.Subtotal().StringFixed(2),
		})
	}
	return resp
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// --- Handlers ---

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	store, ok := h.openStore(w, r, h.carts.Peek)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NewCartResponse(store.Items()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var item menu.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body", enum.ErrorCodeValidation)
		return
	}
	if err := item.Validate(); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), enum.ErrorCodeValidation)
		return
	}

	if err := store.AddItem(r.Context(), item); err != nil {
		h.mutationFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCartResponse(store.Items()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body", enum.ErrorCodeValidation)
		return
	}
	if req.Quantity == nil {
		writeFailure(w, http.StatusBadRequest, "quantity is required", enum.ErrorCodeValidation)
		return
	}

	if err := store.UpdateQuantity(r.Context(), menu.ID(chi.URLParam(r, "id")), *req.Quantity); err != nil {
		h.mutationFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCartResponse(store.Items()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.RemoveItem(r.Context(), menu.ID(chi.URLParam(r, "id"))); err != nil {
		h.mutationFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCartResponse(store.Items()))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.Clear(r.Context()); err != nil {
		h.mutationFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCartResponse(store.Items()))
}

// --- Helpers ---

type openFunc func(ctx context.Context, cartID uuid.UUID) (*cart.Store, error)

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	return h.openStore(w, r, h.carts.Get)
}

func (h *CartHandler) openStore(w http.ResponseWriter, r *http.Request, open openFunc) (*cart.Store, bool) {
	cartID, ok := middleware.CartIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusInternalServerError, "cart session missing", enum.ErrorCodeInternal)
		return nil, false
	}
	store, err := open(r.Context(), cartID)
	if err != nil {
		h.log.Error("open cart", zap.String("cart_id", cartID.String()), zap.Error(err))
		writeFailure(w, http.StatusServiceUnavailable, "cart storage unavailable", enum.ErrorCodeInternal)
		return nil, false
	}
	return store, true
}

func (h *CartHandler) mutationFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, cart.ErrPersist) {
		writeFailure(w, http.StatusServiceUnavailable, "cart could not be saved, please retry", enum.ErrorCodeInternal)
		return
	}
	h.log.Error("cart mutation", zap.Error(err))
	writeFailure(w, http.StatusInternalServerError, "internal server error", enum.ErrorCodeInternal)
}
