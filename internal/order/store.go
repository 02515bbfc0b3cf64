package order

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/db"
)

// settled statuses count as sales in reports.
const settledStatuses = `('paid', 'shipped', 'delivered')`

const orderColumns = `SELECT id, user_id, email, created_at, total, status, delivery_type, address, cart_session FROM orders`

// Store persists orders in PostgreSQL and owns stock decrements.
type Store struct {
	DB db.Pool
	// TimeZone is the IANA zone used to bucket report days.
	TimeZone string
}

// NewStore constructs a Store.
func NewStore(pool db.Pool, timeZone string) *Store {
	if timeZone == "" {
		timeZone = "UTC"
	}
	return &Store{DB: pool, TimeZone: timeZone}
}

// CreatePending records an order awaiting payment.
func (s *Store) CreatePending(ctx context.Context, in NewOrder) (Order, error) {
	if s == nil || s.DB == nil {
		return Order{}, db.ErrUnavailable
	}
	o := Order{
		UserID:       in.UserID,
		Email:        in.Email,
		Total:        in.Total,
		Status:       StatusPending,
		DeliveryType: in.DeliveryType,
		Address:      in.Address,
		CartSession:  in.CartSession,
	}
	err := s.DB.QueryRow(ctx, `INSERT INTO orders (user_id, email, total, status, delivery_type, address, cart_session)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		o.UserID, o.Email, o.Total.IntPart(), string(o.Status), string(o.DeliveryType), o.Address, o.CartSession,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

// Get loads an order with its lines.
func (s *Store) Get(ctx context.Context, id int64) (Order, error) {
	if s == nil || s.DB == nil {
		return Order{}, db.ErrUnavailable
	}
	o, err := scanOrder(s.DB.QueryRow(ctx, orderColumns+` WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	lines, err := s.lines(ctx, s.DB, id)
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines
	return o, nil
}

// MarkRejected flags a pending order whose payment failed. Orders that
// already left the pending state are left untouched.
func (s *Store) MarkRejected(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return db.ErrUnavailable
	}
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET status = 'rejected' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("reject order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyFinal
	}
	return nil
}

// FinalizePaid settles a pending order in one transaction: every product row
// is locked, stock is decremented (never below zero), the lines are recorded
// and the order is marked paid with total.
func (s *Store) FinalizePaid(ctx context.Context, id int64, total decimal.Decimal, lines []Line) (Order, error) {
	if s == nil || s.DB == nil {
		return Order{}, db.ErrUnavailable
	}
	var out Order
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, orderColumns+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if db.IsNoRows(err) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if o.Status != StatusPending {
			return ErrAlreadyFinal
		}

		// Lock products in id order so concurrent checkouts cannot deadlock.
		sorted := make([]Line, len(lines))
		copy(sorted, lines)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
		for _, l := range sorted {
			var stock int
			err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, l.ProductID).Scan(&stock)
			if err != nil && !db.IsNoRows(err) {
				return fmt.Errorf("lock product %d: %w", l.ProductID, err)
			}
			if err == nil {
				if _, err := tx.Exec(ctx, `UPDATE products SET stock = GREATEST(stock - $1, 0) WHERE id = $2`, l.Quantity, l.ProductID); err != nil {
					return fmt.Errorf("decrement stock %d: %w", l.ProductID, err)
				}
			}
		}
		for _, l := range lines {
			if _, err := tx.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, name, quantity, unit_price)
VALUES ($1, (SELECT id FROM products WHERE id = $2), $3, $4, $5)`, id, l.ProductID, l.Name, l.Quantity, l.UnitPrice.IntPart()); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = 'paid', total = $1 WHERE id = $2`, total.IntPart(), id); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		o.Status = StatusPaid
		o.Total = total
		o.Lines = lines
		out = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// ListFilter narrows staff order listings.
type ListFilter struct {
	UserID   string
	From     *time.Time
	To       *time.Time
	Delivery DeliveryType
	Status   Status
	Limit    int
	Offset   int
}

// List returns orders newest first with the total count.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Order, int64, error) {
	if s == nil || s.DB == nil {
		return nil, 0, db.ErrUnavailable
	}
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.From != nil {
		add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		add("created_at < ?", *f.To)
	}
	if f.Delivery != "" {
		add("delivery_type = ?", string(f.Delivery))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	sql := orderColumns + where + ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := s.DB.Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	orders := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// UpdateStatus moves an order forward in its fulfilment workflow.
func (s *Store) UpdateStatus(ctx context.Context, id int64, target Status) (Order, error) {
	if s == nil || s.DB == nil {
		return Order{}, db.ErrUnavailable
	}
	var out Order
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, orderColumns+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if db.IsNoRows(err) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if !o.Status.CanTransition(target) {
			return fmt.Errorf("%s -> %s: %w", o.Status, target, ErrInvalidTransition)
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(target), id); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		o.Status = target
		out = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// DaySales is the settled revenue of one calendar day.
type DaySales struct {
	Day   string          `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// ProductSales aggregates units and revenue for one product.
type ProductSales struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Dashboard is the staff overview.
type Dashboard struct {
	TotalOrders   int64           `json:"totalOrders"`
	OrdersToday   int64           `json:"ordersToday"`
	SalesToday    decimal.Decimal `json:"salesToday"`
	PendingOrders int64           `json:"pendingOrders"`
	LastSevenDays []DaySales      `json:"lastSevenDays"`
	TopProducts   []ProductSales  `json:"topProducts"`
}

// Dashboard computes the staff overview for the civil day containing now.
func (s *Store) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	if s == nil || s.DB == nil {
		return Dashboard{}, db.ErrUnavailable
	}
	today := now.Format("2006-01-02")
	var (
		d          Dashboard
		salesToday int64
	)
	err := s.DB.QueryRow(ctx, `SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE (created_at AT TIME ZONE $1)::date = $2::date),
    COALESCE(SUM(total) FILTER (WHERE (created_at AT TIME ZONE $1)::date = $2::date AND status IN `+settledStatuses+`), 0),
    COUNT(*) FILTER (WHERE status = 'pending')
FROM orders`, s.TimeZone, today).Scan(&d.TotalOrders, &d.OrdersToday, &salesToday, &d.PendingOrders)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard counters: %w", err)
	}
	d.SalesToday = decimal.NewFromInt(salesToday)

	rows, err := s.DB.Query(ctx, `SELECT to_char((created_at AT TIME ZONE $1)::date, 'YYYY-MM-DD') AS day, SUM(total)
FROM orders
WHERE status IN `+settledStatuses+`
  AND (created_at AT TIME ZONE $1)::date BETWEEN $2::date - 6 AND $2::date
GROUP BY day ORDER BY day`, s.TimeZone, today)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard daily sales: %w", err)
	}
	defer rows.Close()
	d.LastSevenDays = make([]DaySales, 0, 7)
	for rows.Next() {
		var (
			day   string
			total int64
		)
		if err := rows.Scan(&day, &total); err != nil {
			return Dashboard{}, fmt.Errorf("scan daily sales: %w", err)
		}
		d.LastSevenDays = append(d.LastSevenDays, DaySales{Day: day, Total: decimal.NewFromInt(total)})
	}
	if err := rows.Err(); err != nil {
		return Dashboard{}, err
	}

	from := now.AddDate(0, 0, -30)
	top, err := s.TopProducts(ctx, &from, nil, 10)
	if err != nil {
		return Dashboard{}, err
	}
	d.TopProducts = top
	return d, nil
}

// TopProducts ranks products by units sold on settled orders in [from, to).
func (s *Store) TopProducts(ctx context.Context, from, to *time.Time, limit int) ([]ProductSales, error) {
	if s == nil || s.DB == nil {
		return nil, db.ErrUnavailable
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	args := []any{}
	where := " WHERE o.status IN " + settledStatuses
	if from != nil {
		args = append(args, *from)
		where += " AND o.created_at >= $" + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += " AND o.created_at < $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	rows, err := s.DB.Query(ctx, `SELECT l.name, SUM(l.quantity) AS units, SUM(l.quantity * l.unit_price) AS revenue
FROM order_lines l JOIN orders o ON o.id = l.order_id`+where+`
GROUP BY l.name ORDER BY units DESC, l.name LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()
	out := make([]ProductSales, 0, limit)
	for rows.Next() {
		var (
			ps      ProductSales
			revenue int64
		)
		if err := rows.Scan(&ps.Name, &ps.Quantity, &revenue); err != nil {
			return nil, fmt.Errorf("scan top products: %w", err)
		}
		ps.Revenue = decimal.NewFromInt(revenue)
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *Store) lines(ctx context.Context, q db.Querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT COALESCE(product_id, 0), name, quantity, unit_price FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()
	out := make([]Line, 0)
	for rows.Next() {
		var (
			l     Line
			price int64
		)
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		l.UnitPrice = decimal.NewFromInt(price)
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                Order
		total            int64
		status, delivery string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Email, &o.CreatedAt, &total, &status, &delivery, &o.Address, &o.CartSession); err != nil {
		return Order{}, err
	}
	o.Total = decimal.NewFromInt(total)
	o.Status = Status(status)
	if parsed, err := ParseStatus(status); err == nil {
		o.Status = parsed
	}
	o.DeliveryType = DeliveryType(delivery)
	if parsed, err := ParseDeliveryType(delivery); err == nil {
		o.DeliveryType = parsed
	}
	return o, nil
}
