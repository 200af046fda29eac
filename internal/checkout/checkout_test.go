package checkout

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"github.com/oppa-kitchen/storefront/internal/menu"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrders struct {
	createFn func(ctx context.Context, authorization string, req backend.OrderRequest) (*backend.CreatedOrder, error)
	calls    atomic.Int32
}

func (m *mockOrders) CreateOrder(ctx context.Context, authorization string, req backend.OrderRequest) (*backend.CreatedOrder, error) {
	m.calls.Add(1)
	return m.createFn(ctx, authorization, req)
}

func placed(number string) *mockOrders {
	return &mockOrders{createFn: func(context.Context, string, backend.OrderRequest) (*backend.CreatedOrder, error) {
		return &backend.CreatedOrder{OrderNumber: number}, nil
	}}
}

func filledCart(t *testing.T) *cart.Store {
	t.Helper()
	ctx := context.Background()
	s, err := cart.Open(ctx, cart.NewMemoryRepository(), "checkout-test")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, menu.Item{ID: "A", Name: "Bulgogi", Price: decimal.RequireFromString("10.00"), Image: menu.StringImage("/a.jpg")}))
	b := menu.Item{ID: "B", Name: "Kimchi", Price: decimal.RequireFromString("5.50"), Category: "Sides", IsSpicy: true}
	require.NoError(t, s.AddItem(ctx, b))
	require.NoError(t, s.AddItem(ctx, b))
	return s
}

func validInfo() Info {
	return Info{
		Name:    "Kim Minji",
		Email:   "minji@example.com",
		Phone:   "09171234567",
		Address: "12 Mabini St",
		City:    "Manila",
		ZipCode: "1000",
	}
}

func TestSummary(t *testing.T) {
	s := filledCart(t)
	f := NewFlow(placed("X"), decimal.RequireFromString("3.99"), nil)

	sum := f.Summary(s)
	assert.Equal(t, "21.00", sum.Subtotal.StringFixed(2))
	assert.Equal(t, "24.99", sum.Total.StringFixed(2))
	assert.Equal(t, 3, sum.ItemCount)

	require.NoError(t, s.UpdateQuantity(context.Background(), "B", 1))
	assert.Equal(t, "19.49", f.Summary(s).Total.StringFixed(2))
}

func TestSubmitSuccessClearsCart(t *testing.T) {
	s := filledCart(t)
	var got backend.OrderRequest
	var auth string
	orders := &mockOrders{createFn: func(_ context.Context, a string, req backend.OrderRequest) (*backend.CreatedOrder, error) {
		auth, got = a, req
		return &backend.CreatedOrder{OrderNumber: "OPPA-1001"}, nil
	}}
	f := NewFlow(orders, decimal.RequireFromString("3.99"), nil)

	out, err := f.Submit(context.Background(), s, validInfo(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, []State{StateIdle, StateValidating, StateAuthCheck, StateSubmitting, StateSuccess}, out.Trail)
	assert.Equal(t, "OPPA-1001", out.OrderNumber)
	assert.Equal(t, "/order-success?order=OPPA-1001", out.Redirect)
	assert.Equal(t, 0, s.ItemCount())

	assert.Equal(t, "Bearer tok", auth)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Korean Food", got.Items[0].Category)
	assert.Equal(t, "/a.jpg", got.Items[0].ImageURL)
	assert.Equal(t, "Sides", got.Items[1].Category)
	assert.Equal(t, 2, got.Items[1].Quantity)
	assert.True(t, got.Items[1].IsSpicy)
	assert.Equal(t, menu.PlaceholderImage, got.Items[1].ImageURL)
	assert.Equal(t, enum.PaymentMethodCash, got.PaymentMethod)
	assert.Equal(t, "12 Mabini St", got.DeliveryAddress)
	assert.Equal(t, "1000", got.DeliveryZipCode)
}

// contextRepo refuses writes once the caller's context is done, as the
// postgres and redis repositories do.
type contextRepo struct {
	*cart.MemoryRepository
}

func (r contextRepo) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRepository.Save(ctx, key, data)
}

func TestSubmitClearsCartAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := contextRepo{cart.NewMemoryRepository()}
	s, err := cart.Open(ctx, repo, "cancelled-checkout")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, menu.Item{ID: "A", Name: "Bulgogi", Price: decimal.RequireFromString("10.00")}))

	// The order is accepted, then the client disconnects before the cart is cleared.
	orders := &mockOrders{createFn: func(context.Context, string, backend.OrderRequest) (*backend.CreatedOrder, error) {
		cancel()
		return &backend.CreatedOrder{OrderNumber: "OPPA-1001"}, nil
	}}
	f := NewFlow(orders, decimal.RequireFromString("3.99"), nil)

	out, err := f.Submit(ctx, s, validInfo(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, "OPPA-1001", out.OrderNumber)
	assert.Equal(t, 0, s.ItemCount())

	data, err := repo.Load(context.Background(), "cancelled-checkout")
	require.NoError(t, err)
	items, err := cart.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Info)
		field  string
	}{
		{"missing name", func(i *Info) { i.Name = "" }, "name"},
		{"missing email", func(i *Info) { i.Email = "  " }, "email"},
		{"missing phone", func(i *Info) { i.Phone = "" }, "phone"},
		{"missing address", func(i *Info) { i.Address = "" }, "address"},
		{"bad payment method", func(i *Info) { i.PaymentMethod = "bitcoin" }, "payment_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := filledCart(t)
			before := s.Items()
			orders := placed("X")
			f := NewFlow(orders, decimal.Zero, nil)
			info := validInfo()
			tt.mutate(&info)

			out, err := f.Submit(context.Background(), s, info, "tok")
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
			assert.Equal(t, StateIdle, out.State)
			assert.Equal(t, int32(0), orders.calls.Load())
			assert.Equal(t, before, s.Items())
		})
	}
}

func TestSubmitWithoutToken(t *testing.T) {
	s := filledCart(t)
	orders := placed("X")
	f := NewFlow(orders, decimal.Zero, nil)

	out, err := f.Submit(context.Background(), s, validInfo(), "")
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, RedirectLogin, out.Redirect)
	assert.Equal(t, StateIdle, out.State)
	assert.Equal(t, int32(0), orders.calls.Load())
	assert.Equal(t, 3, s.ItemCount())
}

func TestSubmitEmptyCart(t *testing.T) {
	s, err := cart.Open(context.Background(), cart.NewMemoryRepository(), "empty")
	require.NoError(t, err)
	orders := placed("X")
	f := NewFlow(orders, decimal.Zero, nil)

	out, err := f.Submit(context.Background(), s, validInfo(), "tok")
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, RedirectCart, out.Redirect)
	assert.Equal(t, int32(0), orders.calls.Load())
}

func TestSubmitUpstreamFailureKeepsCart(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     error
		message  string
		redirect string
	}{
		{"unavailable", &backend.Error{Kind: backend.ErrUnavailable, Status: http.StatusServiceUnavailable, Message: "maintenance"}, backend.ErrUnavailable, "maintenance", ""},
		{"timeout", &backend.Error{Kind: backend.ErrTimeout, Status: http.StatusGatewayTimeout, Message: "Request timed out"}, backend.ErrTimeout, "Request timed out", ""},
		{"rejected", &backend.Error{Kind: backend.ErrRejected, Status: 422, Message: "The items field is required."}, backend.ErrRejected, "The items field is required.", ""},
		{"token rejected", &backend.Error{Kind: backend.ErrUnauthenticated, Status: 401, Message: "Unauthenticated."}, backend.ErrUnauthenticated, "Unauthenticated.", RedirectLogin},
		{"plain error", errors.New("boom"), nil, "Failed to place order. Please try again.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := filledCart(t)
			before := s.Items()
			f := NewFlow(&mockOrders{createFn: func(context.Context, string, backend.OrderRequest) (*backend.CreatedOrder, error) {
				return nil, tt.err
			}}, decimal.Zero, nil)

			out, err := f.Submit(context.Background(), s, validInfo(), "tok")
			require.Error(t, err)
			if tt.kind != nil {
				assert.ErrorIs(t, err, tt.kind)
			}
			assert.Equal(t, StateFailed, out.State)
			assert.Equal(t, tt.message, out.Notification.Description)
			assert.Equal(t, tt.redirect, out.Redirect)
			assert.True(t, out.Notification.Destructive)
			assert.Equal(t, before, s.Items())
		})
	}
}

func TestSubmitRetryAfterFailure(t *testing.T) {
	s := filledCart(t)
	fail := true
	f := NewFlow(&mockOrders{createFn: func(context.Context, string, backend.OrderRequest) (*backend.CreatedOrder, error) {
		if fail {
			return nil, &backend.Error{Kind: backend.ErrUnavailable, Message: "down"}
		}
		return &backend.CreatedOrder{OrderNumber: "OPPA-2"}, nil
	}}, decimal.Zero, nil)

	_, err := f.Submit(context.Background(), s, validInfo(), "tok")
	require.Error(t, err)
	fail = false
	out, err := f.Submit(context.Background(), s, validInfo(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "OPPA-2", out.OrderNumber)
	assert.Equal(t, 0, s.ItemCount())
}

func TestConcurrentSubmitsCollapse(t *testing.T) {
	s := filledCart(t)
	release := make(chan struct{})
	orders := &mockOrders{createFn: func(context.Context, string, backend.OrderRequest) (*backend.CreatedOrder, error) {
		<-release
		return &backend.CreatedOrder{OrderNumber: "OPPA-7"}, nil
	}}
	f := NewFlow(orders, decimal.Zero, nil)

	var wg sync.WaitGroup
	numbers := make([]string, 5)
	for i := range numbers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.Submit(context.Background(), s, validInfo(), "tok")
			if assert.NoError(t, err) {
				numbers[i] = out.OrderNumber
			}
		}(i)
	}
	// Let the goroutines pile onto the in-flight attempt.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), orders.calls.Load())
	for _, n := range numbers {
		assert.Equal(t, "OPPA-7", n)
	}
}
