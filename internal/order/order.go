package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for status changes the workflow forbids.
	ErrInvalidTransition = errors.New("order status transition not allowed")
	// ErrAlreadyFinal is returned when finalising an order that left the pending state.
	ErrAlreadyFinal = errors.New("order is no longer pending")
	// ErrInvalidStatus is returned for unknown status spellings.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidDeliveryType is returned for unknown delivery spellings.
	ErrInvalidDeliveryType = errors.New("invalid delivery type")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusRejected  Status = "rejected"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

// ParseStatus accepts canonical values and the legacy storefront spellings.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pendiente":
		return StatusPending, nil
	case "paid", "pagado":
		return StatusPaid, nil
	case "rejected", "rechazado":
		return StatusRejected, nil
	case "shipped", "enviado":
		return StatusShipped, nil
	case "delivered", "entregado":
		return StatusDelivered, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidStatus, raw)
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPaid:
		return 1
	case StatusShipped:
		return 2
	case StatusDelivered:
		return 3
	case StatusRejected:
		return -1
	}
	return -2
}

// CanTransition reports whether staff may move an order from s to target.
// Fulfilment only moves forward from paid; rejection is decided by the gateway.
func (s Status) CanTransition(target Status) bool {
	switch target {
	case StatusShipped, StatusDelivered:
		return s.rank() >= StatusPaid.rank() && s.rank() < target.rank()
	}
	return false
}

// DeliveryType is how the order reaches the customer.
type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

// ParseDeliveryType accepts canonical values and the legacy storefront spellings.
func ParseDeliveryType(raw string) (DeliveryType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pickup", "retiro":
		return DeliveryPickup, nil
	case "delivery", "despacho":
		return DeliveryDelivery, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidDeliveryType, raw)
}

// Order is a placed order.
type Order struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"userId"`
	Email        string          `json:"email,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Total        decimal.Decimal `json:"total"`
	Status       Status          `json:"status"`
	DeliveryType DeliveryType    `json:"deliveryType"`
	Address      string          `json:"address,omitempty"`
	CartSession  string          `json:"-"`
	Lines        []Line          `json:"lines,omitempty"`
}

// Line is a product sold on an order at its final per-unit price.
type Line struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal is the line total at the recorded unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewOrder holds what is known when a payment is started.
type NewOrder struct {
	UserID       string
	Email        string
	Total        decimal.Decimal
	DeliveryType DeliveryType
	Address      string
	CartSession  string
}
