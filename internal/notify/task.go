package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// TypeOrderConfirmation is the asynq task type for paid-order emails.
const TypeOrderConfirmation = "order:confirmation"

// QueueNotifications is the asynq queue notification tasks run on.
const QueueNotifications = "notifications"

// ConfirmationLine is one purchased line with its pricing breakdown.
type ConfirmationLine struct {
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	BaseUnitPrice  decimal.Decimal `json:"baseUnitPrice"`
	BaseSubtotal   decimal.Decimal `json:"baseSubtotal"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Savings        decimal.Decimal `json:"savings"`
	PromotionLabel string          `json:"promotionLabel,omitempty"`
}

// Confirmation is the payload of an order confirmation task.
type Confirmation struct {
	OrderID      int64              `json:"orderId"`
	CustomerName string             `json:"customerName"`
	Email        string             `json:"email"`
	PaidAt       time.Time          `json:"paidAt"`
	DeliveryType string             `json:"deliveryType"`
	Address      string             `json:"address,omitempty"`
	Total        decimal.Decimal    `json:"total"`
	Lines        []ConfirmationLine `json:"lines"`
}

// Savings sums the per-line savings.
func (c Confirmation) Savings() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Savings)
	}
	return total
}

// NewConfirmationTask builds the task. The task id is derived from the order so
// a retried finalisation cannot send the emails twice.
func NewConfirmationTask(c Confirmation) (*asynq.Task, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode confirmation: %w", err)
	}
	return asynq.NewTask(TypeOrderConfirmation, payload,
		asynq.TaskID("order-confirmation:"+strconv.FormatInt(c.OrderID, 10)),
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer is the subset of *asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
