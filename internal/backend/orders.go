package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/oppa-kitchen/storefront/internal/enum"
)

// ListOrders forwards query to the order listing.
func (c *Client) ListOrders(ctx context.Context, authorization string, query url.Values) (*Response, error) {
	return c.do(ctx, call{
		method:        http.MethodGet,
		path:          "/api/orders",
		query:         query,
		authorization: authorization,
	})
}

// SubmitOrder forwards an order-creation body unchanged.
func (c *Client) SubmitOrder(ctx context.Context, authorization string, body json.RawMessage) (*Response, error) {
	return c.do(ctx, call{
		method:        http.MethodPost,
		path:          "/api/orders",
		authorization: authorization,
		body:          body,
		timeout:       c.orderTimeout,
	})
}

// GetOrder fetches one order with admin visibility.
func (c *Client) GetOrder(ctx context.Context, authorization, id string) (*Response, error) {
	return c.do(ctx, call{
		method:        http.MethodGet,
		path:          "/api/orders/" + url.PathEscape(id),
		authorization: authorization,
		admin:         true,
	})
}

// UpdateOrderStatus moves an order to status. The caller validates status.
func (c *Client) UpdateOrderStatus(ctx context.Context, authorization, id, status string) (*Response, error) {
	return c.do(ctx, call{
		method:        http.MethodPatch,
		path:          "/api/orders/" + url.PathEscape(id),
		authorization: authorization,
		admin:         true,
		body:          map[string]string{"order_status": status},
		timeout:       c.orderTimeout,
	})
}

// CreateOrder places an order. It succeeds only when the service answers
// 2xx with success true and an order carrying an order number.
func (c *Client) CreateOrder(ctx context.Context, authorization string, req OrderRequest) (*CreatedOrder, error) {
	resp, err := c.do(ctx, call{
		method:        http.MethodPost,
		path:          "/api/orders",
		authorization: authorization,
		body:          req,
		timeout:       c.orderTimeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(resp, "Failed to create order")
	}

	var env struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    *struct {
			Order json.RawMessage `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil || !env.Success || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "Failed to create order"
		}
		return nil, &Error{Kind: ErrRejected, Status: http.StatusBadGateway, Code: enum.ErrorCodeUpstreamRejected, Message: msg}
	}

	var order struct {
		OrderNumber string `json:"order_number"`
	}
	if len(env.Data.Order) > 0 {
		_ = json.Unmarshal(env.Data.Order, &order)
	}
	if order.OrderNumber == "" {
		return nil, &Error{Kind: ErrRejected, Status: http.StatusBadGateway, Code: enum.ErrorCodeUpstreamRejected, Message: "Order service response is missing the order number"}
	}
	return &CreatedOrder{OrderNumber: order.OrderNumber, Order: env.Data.Order}, nil
}

// Orders fetches one page of the caller's orders as a typed read model.
func (c *Client) Orders(ctx context.Context, authorization string, page, perPage int) (*OrderPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	resp, err := c.ListOrders(ctx, authorization, q)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(resp, "Failed to fetch orders")
	}

	var env struct {
		Success bool       `json:"success"`
		Message string     `json:"message"`
		Data    *OrderPage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &Error{Kind: ErrUnavailable, Status: http.StatusBadGateway, Code: enum.ErrorCodeInvalidJSON, Message: "Unexpected order listing shape"}
	}
	if !env.Success || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "Failed to fetch orders"
		}
		return nil, &Error{Kind: ErrRejected, Status: http.StatusBadGateway, Code: enum.ErrorCodeUpstreamRejected, Message: msg}
	}
	return env.Data, nil
}

// FindOrder looks up an order by its order number among the caller's
// most recent orders.
func (c *Client) FindOrder(ctx context.Context, authorization, orderNumber string) (*Order, error) {
	page, err := c.Orders(ctx, authorization, 1, 50)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if page.Items[i].OrderNumber == orderNumber {
			return &page.Items[i], nil
		}
	}
	return nil, ErrOrderNotFound
}
