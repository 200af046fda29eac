package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/handler"
	"github.com/oppa-kitchen/storefront/internal/middleware"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-for-cart-sessions"

// --- Mock CartProvider ---

type mockCarts struct {
	getFn  func(ctx context.Context, cartID uuid.UUID) (*cart.Store, error)
	peekFn func(ctx context.Context, cartID uuid.UUID) (*cart.Store, error)
}

func (m *mockCarts) Get(ctx context.Context, cartID uuid.UUID) (*cart.Store, error) {
	return m.getFn(ctx, cartID)
}

func (m *mockCarts) Peek(ctx context.Context, cartID uuid.UUID) (*cart.Store, error) {
	if m.peekFn != nil {
		return m.peekFn(ctx, cartID)
	}
	return m.getFn(ctx, cartID)
}

// singleCart hands every session the same store.
func singleCart(t *testing.T, repo cart.Repository) (*mockCarts, *cart.Store) {
	t.Helper()
	store, err := cart.Open(context.Background(), repo, "handler-test")
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	return &mockCarts{getFn: func(context.Context, uuid.UUID) (*cart.Store, error) { return store, nil }}, store
}

func newCartRouter(carts handler.CartProvider) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.CartSession(testSecret, time.Hour, false, zap.NewNop()))
	r.Route("/cart", handler.NewCartHandler(carts, zap.NewNop()).RegisterRoutes)
	return r
}

type brokenRepo struct{ *cart.MemoryRepository }

func (brokenRepo) Save(context.Context, string, []byte) error { return errors.New("connection reset") }

// --- Tests ---

func TestCart_AddItemTwiceIncrementsQuantity(t *testing.T) {
	carts, _ := singleCart(t, cart.NewMemoryRepository())
	r := newCartRouter(carts)
	body := map[string]interface{}{"id": 1, "name": "Bibimbap", "price": "12.50", "image": map[string]string{}, "isSpicy": true}

	sendJSON(t, r, "POST", "/cart/items", body)
	rr := sendJSON(t, r, "POST", "/cart/items", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total"] != "25.00" {
		t.Errorf("total: got %v, want 25.00", resp["total"])
	}
	if resp["item_count"] != float64(2) {
		t.Errorf("item_count: got %v, want 2", resp["item_count"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	line := items[0].(map[string]interface{})
	if line["id"] != "1" {
		t.Errorf("id: got %v, want \"1\"", line["id"])
	}
	if line["image"] != "/placeholder.svg" {
		t.Errorf("image: got %v, want placeholder", line["image"])
	}
	if line["is_spicy"] != true {
		t.Errorf("is_spicy: got %v", line["is_spicy"])
	}
	if line["subtotal"] != "25.00" {
		t.Errorf("subtotal: got %v", line["subtotal"])
	}
}

func TestCart_AddItemValidation(t *testing.T) {
	carts, _ := singleCart(t, cart.NewMemoryRepository())
	r := newCartRouter(carts)

	for name, body := range map[string]interface{}{
		"invalid json":   `{"id":`,
		"missing id":     map[string]interface{}{"name": "x", "price": "1"},
		"negative price": map[string]interface{}{"id": "a", "price": "-1"},
	} {
		rr := sendJSON(t, r, "POST", "/cart/items", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", name, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestCart_UpdateQuantityAndRemove(t *testing.T) {
	carts, store := singleCart(t, cart.NewMemoryRepository())
	r := newCartRouter(carts)
	sendJSON(t, r, "POST", "/cart/items", map[string]interface{}{"id": "A", "price": "10"})
	sendJSON(t, r, "POST", "/cart/items", map[string]interface{}{"id": "B", "price": "5.50"})

	rr := sendJSON(t, r, "PATCH", "/cart/items/A", map[string]int{"quantity": 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status: got %d", rr.Code)
	}
	if got := store.ItemCount(); got != 4 {
		t.Errorf("item count after update: got %d, want 4", got)
	}

	rr = sendJSON(t, r, "PATCH", "/cart/items/B", map[string]int{"quantity": 0})
	if rr.Code != http.StatusOK {
		t.Fatalf("zero-quantity status: got %d", rr.Code)
	}
	if got := store.Len(); got != 1 {
		t.Errorf("lines after zero quantity: got %d, want 1", got)
	}

	rr = sendJSON(t, r, "DELETE", "/cart/items/A", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["total"] != "0.00" {
		t.Errorf("total after remove: got %v", resp["total"])
	}
}

func TestCart_UpdateQuantityRequiresQuantity(t *testing.T) {
	carts, _ := singleCart(t, cart.NewMemoryRepository())
	rr := sendJSON(t, newCartRouter(carts), "PATCH", "/cart/items/A", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCart_Clear(t *testing.T) {
	carts, store := singleCart(t, cart.NewMemoryRepository())
	r := newCartRouter(carts)
	sendJSON(t, r, "POST", "/cart/items", map[string]interface{}{"id": "A", "price": "10"})

	rr := sendJSON(t, r, "DELETE", "/cart", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty cart, got %d lines", store.Len())
	}
}

func TestCart_PersistFailure(t *testing.T) {
	carts, store := singleCart(t, brokenRepo{cart.NewMemoryRepository()})

	rr := sendJSON(t, newCartRouter(carts), "POST", "/cart/items", map[string]interface{}{"id": "A", "price": "10"})

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if store.Len() != 0 {
		t.Errorf("failed add must not change the cart, got %d lines", store.Len())
	}
}

func TestCart_StorageUnavailable(t *testing.T) {
	carts := &mockCarts{getFn: func(context.Context, uuid.UUID) (*cart.Store, error) {
		return nil, errors.New("redis down")
	}}

	rr := sendJSON(t, newCartRouter(carts), "GET", "/cart", nil)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestCart_SessionsAreIsolated(t *testing.T) {
	reg := cart.NewRegistry(cart.NewMemoryRepository(), zap.NewNop(), nil)
	r := newCartRouter(reg)

	first := sendJSON(t, r, "POST", "/cart/items", map[string]interface{}{"id": "A", "price": "10"})
	token := first.Header().Get(middleware.CartHeader)
	if token == "" {
		t.Fatal("expected cart token header")
	}

	same := sendJSON(t, r, "GET", "/cart", nil, middleware.CartHeader, token)
	if resp := decodeResponse(t, same); resp["item_count"] != float64(1) {
		t.Errorf("same session item_count: got %v, want 1", resp["item_count"])
	}

	other := sendJSON(t, r, "GET", "/cart", nil)
	if resp := decodeResponse(t, other); resp["item_count"] != float64(0) {
		t.Errorf("new session item_count: got %v, want 0", resp["item_count"])
	}
}

func TestCart_ReadsDoNotRegisterSessions(t *testing.T) {
	reg := cart.NewRegistry(cart.NewMemoryRepository(), zap.NewNop(), nil)
	r := newCartRouter(reg)

	for i := 0; i < 500; i++ {
		rr := sendJSON(t, r, "GET", "/cart", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
		}
	}
	if got := reg.Len(); got != 0 {
		t.Fatalf("registered carts after reads: got %d, want 0", got)
	}

	rr := sendJSON(t, r, "POST", "/cart/items", map[string]interface{}{"id": "A", "price": "10"})
	if rr.Code != http.StatusOK {
		t.Fatalf("add status: got %d", rr.Code)
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("registered carts after add: got %d, want 1", got)
	}

	// A read on the same session sees the registered cart.
	same := sendJSON(t, r, "GET", "/cart", nil, middleware.CartHeader, rr.Header().Get(middleware.CartHeader))
	if resp := decodeResponse(t, same); resp["item_count"] != float64(1) {
		t.Errorf("item_count: got %v, want 1", resp["item_count"])
	}
}
