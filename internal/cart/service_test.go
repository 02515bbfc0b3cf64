package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/cart"
	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/pricing"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

type memCatalog map[int64]catalog.Product

func (m memCatalog) Get(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := m[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (m memCatalog) GetMany(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type staticPromotions []promotion.Promotion

func (s staticPromotions) ListActive(context.Context) ([]promotion.Promotion, error) { return s, nil }

type fixture struct {
	svc     *cart.Service
	store   *cart.Store
	catalog memCatalog
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := memCatalog{
		1: {ID: 1, Name: "Kuchen de nuez", Category: catalog.CategoryDisplayCase, Price: decimal.NewFromInt(1000), Stock: 10},
		2: {ID: 2, Name: "Torta de hojarasca", Category: catalog.CategoryCakes, Price: decimal.NewFromInt(2500), Stock: 2},
	}
	promos := staticPromotions{
		{ID: 1, Active: true, Title: "2x1 en vitrina", Kind: promotion.KindTwoForOne, Category: catalog.CategoryDisplayCase},
	}
	store := &cart.Store{R: client, TTL: time.Hour}
	svc := &cart.Service{
		Store:    store,
		Products: products,
		Pricer:   &pricing.Orchestrator{Products: products, Promotions: promos, Logger: zerolog.Nop()},
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) },
	}
	return fixture{svc: svc, store: store, catalog: products, mr: mr}
}

const session = "4b5c1f0e-8d1a-4a43-9f51-0b1f5e0c2a77"

func TestServiceAddAndView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, session, 1, 3)
	require.NoError(t, err)
	view, err := f.svc.Add(ctx, session, 2, 1)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	require.Equal(t, 4, view.Count)
	require.True(t, view.Lines[0].Subtotal.Equal(decimal.NewFromInt(2000)))
	require.Equal(t, "2x1 en vitrina", view.Lines[0].PromotionLabel)
	require.True(t, view.Lines[0].HasDiscount)
	require.False(t, view.Lines[1].HasDiscount)
	require.True(t, view.Total.Equal(decimal.NewFromInt(4500)))
	require.True(t, view.Savings.Equal(decimal.NewFromInt(1000)))

	require.True(t, f.mr.Exists("cart:"+session))
	require.Greater(t, f.mr.TTL("cart:"+session), time.Duration(0))
}

func TestServiceHealsDeletedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, session, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, session, 2, 1)
	require.NoError(t, err)

	delete(f.catalog, 2)

	view, err := f.svc.View(ctx, session)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.True(t, view.Total.Equal(decimal.NewFromInt(1000)))

	stored, err := f.store.Load(ctx, session)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	require.Equal(t, int64(1), stored.Lines[0].ProductID)
}

func TestServicePricedReturnsHealedCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog[3] = catalog.Product{ID: 3, Name: "Alfajor", Category: catalog.CategoryDesserts, Price: decimal.NewFromInt(800), Stock: 5}

	for _, id := range []int64{1, 2, 3} {
		_, err := f.svc.Add(ctx, session, id, 1)
		require.NoError(t, err)
	}
	delete(f.catalog, 2)

	c, priced, err := f.svc.Priced(ctx, session)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, priced.Removed)

	ids := make([]int64, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ProductID)
	}
	require.Equal(t, []int64{1, 3}, ids)
	require.Equal(t, 2, c.Count())

	stored, err := f.store.Load(ctx, session)
	require.NoError(t, err)
	require.Equal(t, c.Lines, stored.Lines)
}

func TestServiceRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, session, 1, 2)
	require.NoError(t, err)

	view, err := f.svc.Remove(ctx, session, 1)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.False(t, f.mr.Exists("cart:"+session))

	_, err = f.svc.Remove(ctx, session, 99)
	require.NoError(t, err)

	_, err = f.svc.Add(ctx, session, 1, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, session))
	view, err = f.svc.View(ctx, session)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
}

func TestHandlerAddItemStockErrors(t *testing.T) {
	f := newFixture(t)
	h := &cart.Handler{Svc: f.svc}
	router := chi.NewRouter()
	router.Use(cart.SessionMiddleware(time.Hour, false))
	router.Post("/api/v1/cart/items", h.AddItem)
	router.Get("/api/v1/cart", h.Get)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		req.Header.Set(cart.SessionHeader, session)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, post(`{"productId":2,"quantity":2}`).Code)
	rec := post(`{"productId":2}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "STOCK_LIMIT")

	require.Equal(t, http.StatusNotFound, post(`{"productId":77}`).Code)
	require.Equal(t, http.StatusUnprocessableEntity, post(`{"productId":0}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(cart.SessionHeader, session)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)
	var payload struct {
		Data cart.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &payload))
	require.Equal(t, 2, payload.Data.Count)
}

func TestSessionMiddlewareIssuesCookie(t *testing.T) {
	var seen string
	handler := cart.SessionMiddleware(time.Hour, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = cart.Session(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(cart.SessionHeader))
	require.Contains(t, rec.Header().Get("Set-Cookie"), cart.SessionCookie+"="+seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cart.SessionCookie, Value: session})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, session, seen)
	require.Empty(t, rec.Header().Get("Set-Cookie"))
}
