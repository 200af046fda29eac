// Package checkout turns a cart and the customer's delivery details into a
// placed order, and reconciles the cart with the result.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oppa-kitchen/storefront/internal/backend"
	"github.com/oppa-kitchen/storefront/internal/cart"
	"github.com/oppa-kitchen/storefront/internal/enum"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultCategory = "Korean Food"

// Redirect targets handed back to the caller.
const (
	RedirectLogin   = "/login"
	RedirectCart    = "/cart"
	redirectSuccess = "/order-success?order="
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrValidation   = errors.New("checkout validation failed")
	ErrAuthRequired = errors.New("authentication required")
)

// State is a step of one checkout attempt.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateAuthCheck  State = "auth_check"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// Info is what the customer fills in on the checkout form.
type Info struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	ZipCode       string `json:"zip_code"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
	ReceiptFile   string `json:"receipt_file"`
}

// ValidationError lists the offending form fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid fields: %s", strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Notification is the user-facing message of an attempt.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Destructive bool   `json:"destructive"`
}

// Outcome reports how an attempt ended. Trail lists the states visited.
type Outcome struct {
	State        State        `json:"state"`
	Trail        []State      `json:"trail"`
	OrderNumber  string       `json:"order_number,omitempty"`
	Redirect     string       `json:"redirect,omitempty"`
	Notification Notification `json:"notification"`
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Trail = append(o.Trail, s)
}

// Cart is the part of a cart store checkout needs. Satisfied by
// *cart.Store; narrow interface for testability.
type Cart interface {
	Key() string
	Items() []cart.LineItem
	Total() decimal.Decimal
	ItemCount() int
	Clear(ctx context.Context) error
}

// OrderCreator places orders. Satisfied by *backend.Client.
type OrderCreator interface {
	CreateOrder(ctx context.Context, authorization string, req backend.OrderRequest) (*backend.CreatedOrder, error)
}

// Summary is the money shown on the checkout page.
type Summary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"item_count"`
}

// Flow runs checkout attempts. Concurrent submissions for the same cart
// share one attempt.
type Flow struct {
	orders OrderCreator
	fee    decimal.Decimal
	log    *zap.Logger
	group  singleflight.Group
}

func NewFlow(orders OrderCreator, deliveryFee decimal.Decimal, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{orders: orders, fee: deliveryFee, log: log}
}

// Summary recomputes the totals from the cart's current contents.
func (f *Flow) Summary(c Cart) Summary {
	subtotal := c.Total()
	return Summary{
		Subtotal:    subtotal,
		DeliveryFee: f.fee,
		Total:       subtotal.Add(f.fee),
		ItemCount:   c.ItemCount(),
	}
}

// Submit runs one checkout attempt. token is the customer's bearer token
// without the "Bearer " prefix. The returned Outcome is never nil; err is
// nil only when the order was placed.
func (f *Flow) Submit(ctx context.Context, c Cart, info Info, token string) (*Outcome, error) {
	type result struct {
		out *Outcome
		err error
	}
	v, _, shared := f.group.Do(c.Key(), func() (any, error) {
		out, err := f.submit(ctx, c, info, token)
		return result{out, err}, nil
	})
	if shared {
		f.log.Info("collapsed duplicate checkout", zap.String("cart", c.Key()))
	}
	r := v.(result)
	return r.out, r.err
}

func (f *Flow) submit(ctx context.Context, c Cart, info Info, token string) (*Outcome, error) {
	out := &Outcome{}
	out.enter(StateIdle)

	items := c.Items()
	if len(items) == 0 {
		out.Redirect = RedirectCart
		out.Notification = Notification{Title: "Your cart is empty", Description: "Add something from the menu before checking out.", Destructive: true}
		return out, ErrEmptyCart
	}

	out.enter(StateValidating)
	info = normalize(info)
	if err := validate(info); err != nil {
		out.enter(StateIdle)
		out.Notification = Notification{Title: "Missing Information", Description: "Please fill in all required fields.", Destructive: true}
		return out, err
	}

	out.enter(StateAuthCheck)
	if strings.TrimSpace(token) == "" {
		out.enter(StateIdle)
		out.Redirect = RedirectLogin
		out.Notification = Notification{Title: "Authentication Required", Description: "Please log in to place an order.", Destructive: true}
		return out, ErrAuthRequired
	}

	out.enter(StateSubmitting)
	created, err := f.orders.CreateOrder(ctx, "Bearer "+token, buildRequest(items, info))
	if err != nil {
		out.enter(StateFailed)
		out.Notification = Notification{Title: "Order Failed", Description: failureMessage(err), Destructive: true}
		if errors.Is(err, backend.ErrUnauthenticated) {
			out.Redirect = RedirectLogin
		}
		f.log.Warn("order submission failed", zap.String("cart", c.Key()), zap.Error(err))
		return out, err
	}

	// The order exists upstream: clear even if the caller has gone away, and
	// never turn a failed clear into a failed checkout.
	if err := c.Clear(context.WithoutCancel(ctx)); err != nil {
		f.log.Error("clear cart after order", zap.String("cart", c.Key()), zap.String("order_number", created.OrderNumber), zap.Error(err))
	}
	out.enter(StateSuccess)
	out.OrderNumber = created.OrderNumber
	out.Redirect = redirectSuccess + created.OrderNumber
	out.Notification = Notification{
		Title:       "Order Placed Successfully! 주문 완료!",
		Description: fmt.Sprintf("Order %s has been created. Your Korean feast is being prepared!", created.OrderNumber),
	}
	f.log.Info("order placed", zap.String("cart", c.Key()), zap.String("order_number", created.OrderNumber))
	return out, nil
}

func normalize(info Info) Info {
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	info.Phone = strings.TrimSpace(info.Phone)
	info.Address = strings.TrimSpace(info.Address)
	info.City = strings.TrimSpace(info.City)
	info.ZipCode = strings.TrimSpace(info.ZipCode)
	info.PaymentMethod = strings.ToLower(strings.TrimSpace(info.PaymentMethod))
	if info.PaymentMethod == "" {
		info.PaymentMethod = enum.PaymentMethodCash
	}
	return info
}

func validate(info Info) error {
	fields := map[string]string{}
	required := []struct{ name, value string }{
		{"name", info.Name},
		{"email", info.Email},
		{"phone", info.Phone},
		{"address", info.Address},
	}
	for _, r := range required {
		if r.value == "" {
			fields[r.name] = "required"
		}
	}
	if !enum.IsPaymentMethod(info.PaymentMethod) {
		fields["payment_method"] = "must be one of cash, gcash, paypal, bpi, maya"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func buildRequest(items []cart.LineItem, info Info) backend.OrderRequest {
	req := backend.OrderRequest{
		Items:           make([]backend.OrderItemRequest, 0, len(items)),
		PaymentMethod:   info.PaymentMethod,
		DeliveryAddress: info.Address,
		DeliveryCity:    info.City,
		DeliveryZipCode: info.ZipCode,
		CustomerName:    info.Name,
		CustomerEmail:   info.Email,
		CustomerPhone:   info.Phone,
		ReceiptFile:     info.ReceiptFile,
		Notes:           info.Notes,
	}
	for _, it := range items {
		category := it.Category
		if category == "" {
			category = defaultCategory
		}
		req.Items = append(req.Items, backend.OrderItemRequest{
			Name:         it.Name,
			Description:  it.Description,
			Price:        it.Price,
			Quantity:     it.Quantity,
			Category:     category,
			IsSpicy:      it.IsSpicy,
			IsVegetarian: it.IsVegetarian,
			ImageURL:     it.Image,
		})
	}
	return req
}

func failureMessage(err error) string {
	if be, ok := backend.AsError(err); ok && be.Message != "" {
		return be.Message
	}
	return "Failed to place order. Please try again."
}
