package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-pasteleria/internal/cart"
	"github.com/noah-isme/backend-pasteleria/internal/notify"
	"github.com/noah-isme/backend-pasteleria/internal/obs"
	"github.com/noah-isme/backend-pasteleria/internal/order"
	"github.com/noah-isme/backend-pasteleria/internal/payment"
	"github.com/noah-isme/backend-pasteleria/internal/pricing"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock is returned when a line asks for more than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTotal is returned when the priced total is not payable.
	ErrInvalidTotal = errors.New("order total must be positive")
	// ErrAddressRequired is returned for deliveries without an address.
	ErrAddressRequired = errors.New("address is required for delivery")
	// ErrForbidden is returned when a customer acts on someone else's order.
	ErrForbidden = errors.New("order belongs to another customer")
)

// StockError reports the first line that cannot be fulfilled.
type StockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: only %d of %d available", e.Name, e.Available, e.Requested)
}

// Unwrap allows errors.Is(err, ErrInsufficientStock).
func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Carts is the cart surface checkout needs.
type Carts interface {
	Priced(ctx context.Context, session string) (cart.Cart, pricing.Priced, error)
	Clear(ctx context.Context, session string) error
}

// Orders is the order persistence surface checkout needs.
type Orders interface {
	CreatePending(ctx context.Context, in order.NewOrder) (order.Order, error)
	Get(ctx context.Context, id int64) (order.Order, error)
	MarkRejected(ctx context.Context, id int64) error
	FinalizePaid(ctx context.Context, id int64, total decimal.Decimal, lines []order.Line) (order.Order, error)
}

// Locker serialises work per key.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// CatalogCache drops cached listings once stock changes.
type CatalogCache interface {
	Invalidate(ctx context.Context)
}

// Customer identifies the buyer.
type Customer struct {
	UserID string
	Email  string
}

// Input carries the shopper's delivery choice.
type Input struct {
	DeliveryType string `json:"deliveryType"`
	Address      string `json:"address" validate:"max=300"`
}

// Started is returned once a payment transaction is open.
type Started struct {
	OrderID int64                  `json:"orderId"`
	Total   decimal.Decimal        `json:"total"`
	Payment payment.CreateResponse `json:"payment"`
}

// Result is the outcome of the payment return leg.
type Result struct {
	Order  order.Order  `json:"order"`
	Status order.Status `json:"status"`
}

// Service runs the checkout flow: review, payment start and finalisation.
type Service struct {
	Carts     Carts
	Orders    Orders
	Payments  payment.Provider
	Queue     notify.Enqueuer
	Locks     Locker
	LockTTL   time.Duration
	Catalog   CatalogCache
	ReturnURL string
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Carts == nil || s.Orders == nil || s.Payments == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

// Begin prices the cart for review and checks every line against stock.
func (s *Service) Begin(ctx context.Context, session string) (cart.View, error) {
	if err := s.ready(); err != nil {
		return cart.View{}, err
	}
	c, priced, err := s.reviewed(ctx, session)
	if err != nil {
		countStage("begin", err)
		return cart.View{}, err
	}
	countStage("begin", nil)
	return cart.NewView(c, priced), nil
}

// Start reprices the cart, records a pending order and opens a payment
// transaction for it.
func (s *Service) Start(ctx context.Context, session string, customer Customer, in Input) (out Started, err error) {
	if err := s.ready(); err != nil {
		return Started{}, err
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "Checkout.Start")
	defer span.End()
	defer func() { countStage("start", err) }()

	delivery, err := order.ParseDeliveryType(in.DeliveryType)
	if err != nil {
		return Started{}, err
	}
	address := strings.TrimSpace(in.Address)
	if delivery == order.DeliveryDelivery && address == "" {
		return Started{}, ErrAddressRequired
	}
	_, priced, err := s.reviewed(ctx, session)
	if err != nil {
		return Started{}, err
	}
	total := pricing.RoundUnit(priced.Total)
	if !total.IsPositive() {
		return Started{}, ErrInvalidTotal
	}

	o, err := s.Orders.CreatePending(ctx, order.NewOrder{
		UserID:       customer.UserID,
		Email:        customer.Email,
		Total:        total,
		DeliveryType: delivery,
		Address:      address,
		CartSession:  session,
	})
	if err != nil {
		return Started{}, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))

	resp, err := s.Payments.Create(ctx, payment.CreateRequest{
		BuyOrder:  strconv.FormatInt(o.ID, 10),
		SessionID: session,
		Amount:    total.IntPart(),
		ReturnURL: s.ReturnURL,
	})
	if err != nil {
		if rejectErr := s.Orders.MarkRejected(ctx, o.ID); rejectErr != nil {
			s.Logger.Error().Err(rejectErr).Int64("order_id", o.ID).Msg("failed to reject order after payment error")
		}
		return Started{}, fmt.Errorf("open payment: %w", err)
	}
	s.Logger.Info().Int64("order_id", o.ID).Str("total", total.String()).Msg("payment started")
	return Started{OrderID: o.ID, Total: total, Payment: resp}, nil
}

// Finalize commits the payment token with the gateway and settles the order.
// Repeated calls for a settled order return it unchanged.
func (s *Service) Finalize(ctx context.Context, token string) (out Result, err error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "Checkout.Finalize")
	defer span.End()
	defer func() { countStage("finalize", err) }()

	commit, err := s.Payments.Commit(ctx, token)
	if err != nil {
		countCommit(s.Payments.Name(), "error")
		return Result{}, err
	}
	orderID, err := strconv.ParseInt(commit.BuyOrder, 10, 64)
	if err != nil {
		countCommit(s.Payments.Name(), "error")
		return Result{}, fmt.Errorf("%w: buy order %q", payment.ErrInvalidToken, commit.BuyOrder)
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))

	settle := func(ctx context.Context) error {
		out, err = s.settle(ctx, orderID, commit)
		return err
	}
	if s.Locks == nil {
		err = settle(ctx)
		return out, err
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if lockErr := s.Locks.WithLock(ctx, "checkout:finalize:"+strconv.FormatInt(orderID, 10), ttl, settle); lockErr != nil {
		return Result{}, lockErr
	}
	return out, nil
}

// Cancel rejects a pending order the shopper abandoned at the gateway.
func (s *Service) Cancel(ctx context.Context, userID string, orderID int64) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	if o.UserID != userID {
		return Result{}, ErrForbidden
	}
	if o.Status != order.StatusPending {
		return Result{Order: o, Status: o.Status}, nil
	}
	if err := s.Orders.MarkRejected(ctx, orderID); err != nil && !errors.Is(err, order.ErrAlreadyFinal) {
		return Result{}, err
	}
	countStage("cancel", nil)
	return s.current(ctx, orderID)
}

func (s *Service) settle(ctx context.Context, orderID int64, commit payment.CommitResult) (Result, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	if o.Status != order.StatusPending {
		return Result{Order: o, Status: o.Status}, nil
	}

	provider := s.Payments.Name()
	if !commit.Authorized() {
		countCommit(provider, "rejected")
		return s.reject(ctx, o, "payment rejected by gateway")
	}
	if commit.Amount != o.Total.IntPart() {
		countCommit(provider, "mismatch")
		s.Logger.Error().Int64("order_id", o.ID).Int64("charged", commit.Amount).Str("expected", o.Total.String()).Msg("payment amount does not match order")
		return s.reject(ctx, o, "payment amount mismatch")
	}
	countCommit(provider, "authorized")

	c, priced, err := s.Carts.Priced(ctx, o.CartSession)
	if err != nil {
		return Result{}, fmt.Errorf("reprice cart: %w", err)
	}
	if repriced := pricing.RoundUnit(priced.Total); !repriced.Equal(o.Total) {
		s.Logger.Warn().Int64("order_id", o.ID).Str("charged", o.Total.String()).Str("repriced", repriced.String()).Msg("cart changed since payment started")
	}
	if c.IsEmpty() {
		s.Logger.Warn().Int64("order_id", o.ID).Msg("cart expired before payment returned; order settled without lines")
	}

	lines := make([]order.Line, 0, len(priced.Lines))
	for _, pl := range priced.Lines {
		lines = append(lines, order.Line{
			ProductID: pl.ProductID,
			Name:      pl.Product.Name,
			Quantity:  pl.Quantity,
			UnitPrice: pricing.UnitPriceFor(pl.Discount.Discounted, pl.Quantity),
		})
	}
	paid, err := s.Orders.FinalizePaid(ctx, o.ID, o.Total, lines)
	if errors.Is(err, order.ErrAlreadyFinal) {
		return s.current(ctx, o.ID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("finalize order: %w", err)
	}

	if s.Catalog != nil {
		s.Catalog.Invalidate(ctx)
	}
	if err := s.Carts.Clear(ctx, o.CartSession); err != nil {
		s.Logger.Warn().Err(err).Int64("order_id", o.ID).Msg("failed to clear cart after payment")
	}
	s.enqueueConfirmation(ctx, paid, priced)
	s.Logger.Info().Int64("order_id", o.ID).Str("total", o.Total.String()).Msg("order paid")
	return Result{Order: paid, Status: paid.Status}, nil
}

func (s *Service) reject(ctx context.Context, o order.Order, reason string) (Result, error) {
	if err := s.Orders.MarkRejected(ctx, o.ID); err != nil && !errors.Is(err, order.ErrAlreadyFinal) {
		return Result{}, err
	}
	s.Logger.Info().Int64("order_id", o.ID).Str("reason", reason).Msg("order rejected")
	return s.current(ctx, o.ID)
}

func (s *Service) current(ctx context.Context, id int64) (Result, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Result{Order: o, Status: o.Status}, nil
}

func (s *Service) enqueueConfirmation(ctx context.Context, o order.Order, priced pricing.Priced) {
	if s.Queue == nil {
		return
	}
	c := notify.Confirmation{
		OrderID:      o.ID,
		CustomerName: customerName(o.Email),
		Email:        o.Email,
		PaidAt:       s.now(),
		DeliveryType: string(o.DeliveryType),
		Address:      o.Address,
		Total:        o.Total,
		Lines:        make([]notify.ConfirmationLine, 0, len(priced.Lines)),
	}
	for _, pl := range priced.Lines {
		c.Lines = append(c.Lines, notify.ConfirmationLine{
			Name:           pl.Product.Name,
			Quantity:       pl.Quantity,
			BaseUnitPrice:  pl.UnitPrice,
			BaseSubtotal:   pl.Discount.Base,
			Subtotal:       pl.Discount.Discounted,
			Savings:        pl.Discount.Amount,
			PromotionLabel: pl.Label,
		})
	}
	task, err := notify.NewConfirmationTask(c)
	if err == nil {
		_, err = s.Queue.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.Logger.Error().Err(err).Int64("order_id", o.ID).Msg("failed to enqueue order confirmation")
	}
}

// reviewed loads and prices the cart and verifies stock for every line.
func (s *Service) reviewed(ctx context.Context, session string) (cart.Cart, pricing.Priced, error) {
	c, priced, err := s.Carts.Priced(ctx, session)
	if err != nil {
		return cart.Cart{}, pricing.Priced{}, err
	}
	if len(priced.Lines) == 0 {
		return cart.Cart{}, pricing.Priced{}, ErrEmptyCart
	}
	for _, pl := range priced.Lines {
		if pl.Product.Stock < pl.Quantity {
			return cart.Cart{}, pricing.Priced{}, &StockError{
				ProductID: pl.ProductID,
				Name:      pl.Product.Name,
				Requested: pl.Quantity,
				Available: max(pl.Product.Stock, 0),
			}
		}
	}
	return c, priced, nil
}

func customerName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "customer"
}

func countStage(stage string, err error) {
	if obs.CheckoutTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	obs.CheckoutTotal.WithLabelValues(stage, result).Inc()
}

func countCommit(provider, result string) {
	if obs.PaymentCommitTotal != nil {
		obs.PaymentCommitTotal.WithLabelValues(provider, result).Inc()
	}
}
