package backend

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItemRequest is one line of an order-creation request.
type OrderItemRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Category     string          `json:"category"`
	IsSpicy      bool            `json:"is_spicy"`
	IsVegetarian bool            `json:"is_vegetarian"`
	ImageURL     string          `json:"image_url"`
}

// MarshalJSON writes price as a JSON number with two decimals.
func (r OrderItemRequest) MarshalJSON() ([]byte, error) {
	type alias OrderItemRequest
	return json.Marshal(struct {
		alias
		Price json.Number `json:"price"`
	}{alias: alias(r), Price: json.Number(r.Price.StringFixed(2))})
}

// OrderRequest is the order-creation payload.
type OrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	PaymentMethod   string             `json:"payment_method"`
	DeliveryAddress string             `json:"delivery_address"`
	DeliveryCity    string             `json:"delivery_city"`
	DeliveryZipCode string             `json:"delivery_zip_code"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	CustomerPhone   string             `json:"customer_phone"`
	ReceiptFile     string             `json:"receipt_file"`
	Notes           string             `json:"notes"`
}

// OrderItem is a line of a placed order. It is a snapshot taken when the
// order was created, not a reference into the catalog.
type OrderItem struct {
	ID       json.Number     `json:"id,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Order is a fetched order. Its status changes outside this service, so a
// value is only current as of the fetch that produced it.
type Order struct {
	ID              json.Number     `json:"id,omitempty"`
	OrderNumber     string          `json:"order_number"`
	OrderStatus     string          `json:"order_status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryCity    string          `json:"delivery_city"`
	DeliveryZipCode string          `json:"delivery_zip_code"`
	Notes           string          `json:"notes,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Items           []OrderItem     `json:"order_items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
}

// OrderPage is one page of a customer's orders.
type OrderPage struct {
	Items       []Order `json:"items"`
	CurrentPage int     `json:"current_page"`
	PerPage     int     `json:"per_page"`
	Total       int     `json:"total"`
	LastPage    int     `json:"last_page"`
}

// UnmarshalJSON accepts pagination either inline or under "pagination".
func (p *OrderPage) UnmarshalJSON(b []byte) error {
	type pagination struct {
		CurrentPage int `json:"current_page"`
		PerPage     int `json:"per_page"`
		Total       int `json:"total"`
		LastPage    int `json:"last_page"`
	}
	var wire struct {
		Items      []Order     `json:"items"`
		Pagination *pagination `json:"pagination"`
		pagination
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	pg := wire.pagination
	if wire.Pagination != nil {
		pg = *wire.Pagination
	}
	*p = OrderPage{
		Items:       wire.Items,
		CurrentPage: pg.CurrentPage,
		PerPage:     pg.PerPage,
		Total:       pg.Total,
		LastPage:    pg.LastPage,
	}
	return nil
}

// CreatedOrder is the result of a successful order creation.
type CreatedOrder struct {
	OrderNumber string
	Order       json.RawMessage
}
