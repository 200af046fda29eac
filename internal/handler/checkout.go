package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/checkout"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"github.com/oppa-kitchen/storefront/internal/middleware"
	"go.uber.org/zap"
)

// CheckoutFlow runs checkout attempts.
// Satisfied by *checkout.Flow; narrow interface for testability.
type CheckoutFlow interface {
	Summary(c checkout.Cart) checkout.Summary
	Submit(ctx context.Context, c checkout.Cart, info checkout.Info, token string) (*checkout.Outcome, error)
}

// OrderFinder looks up a placed order for the confirmation view.
// Satisfied by *backend.Client.
type OrderFinder interface {
	FindOrder(ctx context.Context, authorization, orderNumber string) (*backend.Order, error)
}

// CheckoutHandler serves checkout for the caller's cart session.
type CheckoutHandler struct {
	carts  CartProvider
	flow   CheckoutFlow
	orders OrderFinder
	log    *zap.Logger
}

func NewCheckoutHandler(carts CartProvider, flow CheckoutFlow, orders OrderFinder, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, flow: flow, orders: orders, log: log}
}

// RegisterRoutes registers checkout endpoints. Expects
// middleware.CartSession upstream.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Post("/", h.Submit)
	r.Get("/orders/{number}", h.Confirmation)
}

// --- Response types ---

type summaryResponse struct {
	Subtotal    string `json:"subtotal"`
	DeliveryFee string `json:"delivery_fee"`
	Total       string `json:"total"`
	ItemCount   int    `json:"item_count"`
}

type submitResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message,omitempty"`
	Error        string                `json:"error,omitempty"`
	Fields       map[string]string     `json:"fields,omitempty"`
	OrderNumber  string                `json:"order_number,omitempty"`
	Redirect     string                `json:"redirect,omitempty"`
	State        checkout.State        `json:"state"`
	Notification checkout.Notification `json:"notification"`
}

type orderItemResponse struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

type orderResponse struct {
	OrderNumber     string              `json:"order_number"`
	OrderStatus     string              `json:"order_status"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	DeliveryAddress string              `json:"delivery_address"`
	DeliveryCity    string              `json:"delivery_city"`
	DeliveryZipCode string              `json:"delivery_zip_code"`
	Subtotal        string              `json:"subtotal"`
	DeliveryFee     string              `json:"delivery_fee"`
	TotalAmount     string              `json:"total_amount"`
	Items           []orderItemResponse `json:"items"`
}

func toOrderResponse(o *backend.Order) orderResponse {
	resp := orderResponse{
		OrderNumber:     o.OrderNumber,
		OrderStatus:     o.OrderStatus,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryCity:    o.DeliveryCity,
		DeliveryZipCode: o.DeliveryZipCode,
		Subtotal:        o.Subtotal.StringFixed(2),
		DeliveryFee:     o.DeliveryFee.StringFixed(2),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Items:           make([]orderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			Name:     it.Name,
			Price:    it.Price.StringFixed(2),
			Quantity: it.Quantity,
			Subtotal: it.Subtotal.StringFixed(2),
		})
	}
	return resp
}

// --- Handlers ---

func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartStore(w, r, h.carts.Peek)
	if !ok {
		return
	}
	s := h.flow.Summary(store)
	writeJSON(w, http.StatusOK, summaryResponse{
		Subtotal:    s.Subtotal.StringFixed(2),
		DeliveryFee: s.DeliveryFee.StringFixed(2),
		Total:       s.Total.StringFixed(2),
		ItemCount:   s.ItemCount,
	})
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	store, ok := h.cartStore(w, r, h.carts.Get)
	if !ok {
		return
	}

	var info checkout.Info
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body", enum.ErrorCodeValidation)
		return
	}

	out, err := h.flow.Submit(r.Context(), store, info, middleware.BearerToken(r))
	resp := submitResponse{
		Success:      err == nil,
		OrderNumber:  out.OrderNumber,
		Redirect:     out.Redirect,
		State:        out.State,
		Notification: out.Notification,
	}
	if err == nil {
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	resp.Message = out.Notification.Description
	var ve *checkout.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status, resp.Error, resp.Fields = http.StatusBadRequest, enum.ErrorCodeValidation, ve.Fields
	case errors.Is(err, checkout.ErrAuthRequired):
		status, resp.Error = http.StatusUnauthorized, enum.ErrorCodeUnauthenticated
	case errors.Is(err, checkout.ErrEmptyCart):
		status, resp.Error = http.StatusConflict, enum.ErrorCodeEmptyCart
	default:
		if be, ok := backend.AsError(err); ok {
			status, resp.Error = be.Status, be.Code
		} else {
			h.log.Error("checkout", zap.Error(err))
			resp.Error = enum.ErrorCodeInternal
		}
	}
	writeJSON(w, status, resp)
}

// Confirmation returns a freshly fetched copy of a placed order.
func (h *CheckoutHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeJSON(w, http.StatusUnauthorized, failure{Message: "Authorization token required", Error: enum.ErrorCodeUnauthenticated, Redirect: checkout.RedirectLogin})
		return
	}

	order, err := h.orders.FindOrder(r.Context(), auth, chi.URLParam(r, "number"))
	if errors.Is(err, backend.ErrOrderNotFound) {
		writeFailure(w, http.StatusNotFound, "order not found", "")
		return
	}
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": toOrderResponse(order)})
}

func (h *CheckoutHandler) cartStore(w http.ResponseWriter, r *http.Request, open openFunc) (checkout.Cart, bool) {
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
