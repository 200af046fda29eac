package enum

// ── Order lifecycle (owned by the external order service) ──

const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusReady          = "ready"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// ── Checkout choices ──

const (
	PaymentMethodCash   = "cash"
	PaymentMethodGCash  = "gcash"
	PaymentMethodPayPal = "paypal"
	PaymentMethodBPI    = "bpi"
	PaymentMethodMaya   = "maya"
)

// ── Proxy error codes ──

const (
	ErrorCodeTimeout           = "TIMEOUT_ERROR"
	ErrorCodeConnectionRefused = "CONNECTION_REFUSED"
	ErrorCodeDNS               = "DNS_ERROR"
	ErrorCodeNetwork           = "NETWORK_ERROR"
	ErrorCodeEmptyResponse     = "EMPTY_RESPONSE"
	ErrorCodeInvalidJSON       = "INVALID_JSON_RESPONSE"
	ErrorCodeInternal          = "INTERNAL_ERROR"
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeUnauthenticated   = "AUTHENTICATION_REQUIRED"
	ErrorCodeUpstreamRejected  = "UPSTREAM_REJECTED"
	ErrorCodeEmptyCart         = "EMPTY_CART"
)

// IsOrderStatus reports whether s is one of the order statuses above.
func IsOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsPaymentMethod reports whether s is an accepted checkout payment method.
func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodGCash, PaymentMethodPayPal, PaymentMethodBPI, PaymentMethodMaya:
		return true
	}
	return false
}
