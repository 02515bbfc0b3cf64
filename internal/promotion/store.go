package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/db"
)

const selectColumns = `SELECT p.id, p.title, p.label, p.description, p.image_url, p.kind,
       p.percentage, p.second_unit_percentage, p.product_id, p.category, p.link_category,
       p.active_from, p.active_until, p.limited_to_stock, p.active, p.validity_note,
       bound.stock
FROM promotions p
LEFT JOIN products bound ON bound.id = p.product_id`

// Store persists promotions in PostgreSQL.
type Store struct {
	DB db.Querier
}

// NewStore constructs a Store.
func NewStore(q db.Querier) *Store {
	return &Store{DB: q}
}

// ListActive returns active promotions in definition order, with the stock of
// each bound product resolved in the same read.
func (s *Store) ListActive(ctx context.Context) ([]Promotion, error) {
	return s.query(ctx, selectColumns+` WHERE p.active ORDER BY p.id`)
}

// ListByLinkCategory returns active promotions shown on a category page.
func (s *Store) ListByLinkCategory(ctx context.Context, category catalog.Category) ([]Promotion, error) {
	return s.query(ctx, selectColumns+` WHERE p.active AND (p.link_category = $1 OR p.link_category = 'all') ORDER BY p.id`, string(category))
}

// List returns every promotion in definition order.
func (s *Store) List(ctx context.Context) ([]Promotion, error) {
	return s.query(ctx, selectColumns+` ORDER BY p.id`)
}

// Get loads a promotion by id.
func (s *Store) Get(ctx context.Context, id int64) (Promotion, error) {
	if s == nil || s.DB == nil {
		return Promotion{}, db.ErrUnavailable
	}
	row := s.DB.QueryRow(ctx, selectColumns+` WHERE p.id = $1`, id)
	p, err := scanPromotion(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// Create inserts p and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, p Promotion) (Promotion, error) {
	if s == nil || s.DB == nil {
		return Promotion{}, db.ErrUnavailable
	}
	err := s.DB.QueryRow(ctx, `INSERT INTO promotions
    (title, label, description, image_url, kind, percentage, second_unit_percentage, product_id,
     category, link_category, active_from, active_until, limited_to_stock, active, validity_note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id`, writeArgs(p)...).Scan(&p.ID)
	if err != nil {
		return Promotion{}, fmt.Errorf("insert promotion: %w", err)
	}
	return p, nil
}

// Update overwrites the promotion with p.ID.
func (s *Store) Update(ctx context.Context, p Promotion) (Promotion, error) {
	if s == nil || s.DB == nil {
		return Promotion{}, db.ErrUnavailable
	}
	args := append(writeArgs(p), p.ID)
	tag, err := s.DB.Exec(ctx, `UPDATE promotions SET
    title = $1, label = $2, description = $3, image_url = $4, kind = $5, percentage = $6,
    second_unit_percentage = $7, product_id = $8, category = $9, link_category = $10,
    active_from = $11, active_until = $12, limited_to_stock = $13, active = $14, validity_note = $15
WHERE id = $16`, args...)
	if err != nil {
		return Promotion{}, fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Promotion{}, ErrNotFound
	}
	return p, nil
}

// Delete removes a promotion.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return db.ErrUnavailable
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Promotion, error) {
	if s == nil || s.DB == nil {
		return nil, db.ErrUnavailable
	}
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	out := make([]Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var (
		p                       Promotion
		kind, category, linkCat string
		percentage, second      *int32
		boundStock              *int32
	)
	err := row.Scan(&p.ID, &p.Title, &p.Label, &p.Description, &p.ImageURL, &kind,
		&percentage, &second, &p.ProductID, &category, &linkCat,
		&p.ActiveFrom, &p.ActiveUntil, &p.LimitedToStock, &p.Active, &p.ValidityNote,
		&boundStock)
	if err != nil {
		return Promotion{}, err
	}
	// Unknown spellings stay raw so pricing can report the row instead of
	// silently treating it as another kind.
	if parsed, err := ParseKind(kind); err == nil {
		p.Kind = parsed
	} else {
		p.Kind = Kind(kind)
	}
	if scope, err := normalizeScope(category); err == nil {
		p.Category = scope
	} else {
		p.Category = catalog.Category(category)
	}
	if link, err := normalizeScope(linkCat); err == nil {
		p.LinkCategory = link
	} else {
		p.LinkCategory = catalog.Category(linkCat)
	}
	p.Percentage = intPtr(percentage)
	p.SecondUnitPercentage = intPtr(second)
	p.BoundStock = intPtr(boundStock)
	return p, nil
}

func writeArgs(p Promotion) []any {
	return []any{
		p.Title, p.Label, p.Description, p.ImageURL, string(p.Kind),
		int32Ptr(p.Percentage), int32Ptr(p.SecondUnitPercentage), p.ProductID,
		string(p.Category), string(p.LinkCategory),
		datePtr(p.ActiveFrom), datePtr(p.ActiveUntil),
		p.LimitedToStock, p.Active, p.ValidityNote,
	}
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	out := int(*v)
	return &out
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	out := int32(*v)
	return &out
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := civilDate(*t)
	return &d
}
