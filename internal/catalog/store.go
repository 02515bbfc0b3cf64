package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/db"
)

const productColumns = `SELECT id, name, category, price, stock, description, image_url, featured FROM products`

// Filter narrows product listings.
type Filter struct {
	Category Category
	Query    string
	Featured *bool
	InStock  *bool
	Limit    int
	Offset   int
}

// Store persists products in PostgreSQL.
type Store struct {
	DB db.Querier
}

// NewStore constructs a Store.
func NewStore(q db.Querier) *Store {
	return &Store{DB: q}
}

// Get loads one product.
func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	if s == nil || s.DB == nil {
		return Product{}, db.ErrUnavailable
	}
	p, err := scanProduct(s.DB.QueryRow(ctx, productColumns+` WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetMany loads the products with the given ids. Unknown ids are absent from
// the result rather than reported as errors.
func (s *Store) GetMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if s == nil || s.DB == nil {
		return nil, db.ErrUnavailable
	}
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, productColumns+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// List returns products matching f ordered by name, together with the total count.
func (s *Store) List(ctx context.Context, f Filter) ([]Product, int64, error) {
	if s == nil || s.DB == nil {
		return nil, 0, db.ErrUnavailable
	}
	where, args := f.where()

	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	sql := productColumns + where + ` ORDER BY featured DESC, name, id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := s.DB.Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// Create inserts a product.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	if s == nil || s.DB == nil {
		return Product{}, db.ErrUnavailable
	}
	err := s.DB.QueryRow(ctx, `INSERT INTO products (name, category, price, stock, description, image_url, featured)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.Name, string(p.Category), p.Price.IntPart(), p.Stock, p.Description, p.ImageURL, p.Featured).Scan(&p.ID)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// Update overwrites the product with p.ID.
func (s *Store) Update(ctx context.Context, p Product) (Product, error) {
	if s == nil || s.DB == nil {
		return Product{}, db.ErrUnavailable
	}
	tag, err := s.DB.Exec(ctx, `UPDATE products SET name = $1, category = $2, price = $3, stock = $4,
    description = $5, image_url = $6, featured = $7 WHERE id = $8`,
		p.Name, string(p.Category), p.Price.IntPart(), p.Stock, p.Description, p.ImageURL, p.Featured, p.ID)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// Delete removes a product. Carts referencing it heal on their next pricing.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if s == nil || s.DB == nil {
		return db.ErrUnavailable
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Category != "" {
		add("category = ?", string(f.Category))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("(name ILIKE ? OR description ILIKE ?)", "%"+q+"%")
	}
	if f.Featured != nil {
		add("featured = ?", *f.Featured)
	}
	if f.InStock != nil {
		if *f.InStock {
			clauses = append(clauses, "stock > 0")
		} else {
			clauses = append(clauses, "stock <= 0")
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		category string
		price    int64
	)
	if err := row.Scan(&p.ID, &p.Name, &category, &price, &p.Stock, &p.Description, &p.ImageURL, &p.Featured); err != nil {
		return Product{}, err
	}
	if parsed, err := ParseCategory(category); err == nil {
		p.Category = parsed
	} else {
		p.Category = Category(category)
	}
	p.Price = decimal.NewFromInt(price)
	return p, nil
}
