package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasteleria/internal/common"
)

// Repository is the product persistence surface used by Service.
type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, f Filter) ([]Product, int64, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// Service serves catalog reads through a cache and applies staff writes.
type Service struct {
	repo         Repository
	cache        *Cache
	logger       zerolog.Logger
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo         Repository
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category Category
	Featured *bool
	InStock  *bool
	Page     int
	Limit    int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"-"`
	Limit int       `json:"-"`
}

// CategoryInfo is the public category payload.
type CategoryInfo struct {
	Slug Category `json:"slug"`
	Name string   `json:"name"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("catalog: repository is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		repo:         cfg.Repo,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: s.defaultPage, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))

	if v := strings.TrimSpace(values.Get("category")); v != "" {
		category, err := ParseCategory(v)
		if err != nil {
			return params, badRequest("category", "category must be one of display-case, cakes, desserts", err)
		}
		params.Category = category
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	if v := strings.TrimSpace(values.Get("featured")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("featured", "featured must be true or false", err)
		}
		params.Featured = &b
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}
	return params, nil
}

// Categories lists the fixed shelves in menu order.
func (s *Service) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(categories))
	for _, c := range Categories() {
		out = append(out, CategoryInfo{Slug: c, Name: c.DisplayName()})
	}
	return out
}

// List returns a page of products. Unfiltered first pages, per category, are cached.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	key, cacheable := s.listCacheKey(params)
	if cacheable {
		var cached ListResult
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			cached.Page, cached.Limit = params.Page, params.Limit
			return cached, nil
		}
	}
	items, total, err := s.repo.List(ctx, Filter{
		Category: params.Category,
		Query:    params.Query,
		Featured: params.Featured,
		InStock:  params.InStock,
		Limit:    params.Limit,
		Offset:   (params.Page - 1) * params.Limit,
	})
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if cacheable {
		if err := s.cache.SetJSON(ctx, key, result); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return result, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	key := "product:" + strconv.FormatInt(id, 10)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if err := common.ValidateStruct(p); err != nil {
		return Product{}, err
	}
	if !p.Category.IsValid() {
		return Product{}, badRequest("category", "category must be one of display-case, cakes, desserts", nil)
	}
	if p.Price.IsNegative() {
		return Product{}, badRequest("price", "price must not be negative", nil)
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Update validates and replaces a product.
func (s *Service) Update(ctx context.Context, p Product) (Product, error) {
	if err := common.ValidateStruct(p); err != nil {
		return Product{}, err
	}
	if !p.Category.IsValid() {
		return Product{}, badRequest("category", "category must be one of display-case, cakes, desserts", nil)
	}
	if p.Price.IsNegative() {
		return Product{}, badRequest("price", "price must not be negative", nil)
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Invalidate drops cached listings, e.g. after stock changes at checkout.
func (s *Service) Invalidate(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache flush failed")
	}
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	if params.Page != s.defaultPage || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Featured != nil || params.InStock != nil {
		return "", false
	}
	if params.Category == "" {
		return "list:all", true
	}
	return "list:" + string(params.Category), true
}

func badRequest(field, message string, err error) error {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]string{"field": field},
	}
}
