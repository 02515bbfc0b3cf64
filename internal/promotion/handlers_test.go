package promotion_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

type memoryRepo struct {
	items  []promotion.Promotion
	nextID int64
}

func (m *memoryRepo) ListActive(context.Context) ([]promotion.Promotion, error) {
	out := []promotion.Promotion{}
	for _, p := range m.items {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByLinkCategory(_ context.Context, c catalog.Category) ([]promotion.Promotion, error) {
	out := []promotion.Promotion{}
	for _, p := range m.items {
		if p.Active && (p.LinkCategory == c || p.LinkCategory == promotion.AllCategories) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) List(context.Context) ([]promotion.Promotion, error) { return m.items, nil }

func (m *memoryRepo) Get(_ context.Context, id int64) (promotion.Promotion, error) {
	for _, p := range m.items {
		if p.ID == id {
			return p, nil
		}
	}
	return promotion.Promotion{}, promotion.ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	m.nextID++
	p.ID = m.nextID
	m.items = append(m.items, p)
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	for i := range m.items {
		if m.items[i].ID == p.ID {
			m.items[i] = p
			return p, nil
		}
	}
	return promotion.Promotion{}, promotion.ErrNotFound
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return promotion.ErrNotFound
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminCreateNormalisesKind(t *testing.T) {
	repo := &memoryRepo{}
	h := &promotion.Handler{Repo: repo, Logger: zerolog.Nop()}

	body := `{"title":"Segunda a mitad","kind":"segunda_unidad","secondUnitPercentage":50,"category":"tortas","activeFrom":"2025-03-01","activeUntil":"2025-03-31"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/promotions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.AdminCreate(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.items, 1)
	created := repo.items[0]
	require.Equal(t, promotion.KindSecondUnitPercentageOff, created.Kind)
	require.Equal(t, catalog.CategoryCakes, created.Category)
	require.True(t, created.Active)
	require.NotNil(t, created.ActiveUntil)
}

func TestAdminCreateRejectsInconsistentPercentages(t *testing.T) {
	repo := &memoryRepo{}
	h := &promotion.Handler{Repo: repo, Logger: zerolog.Nop()}

	body := `{"title":"2x1","kind":"2x1","percentage":20,"category":"all"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/promotions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.AdminCreate(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var payload struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "VALIDATION_ERROR", payload.Error.Code)
	require.Contains(t, payload.Error.Details, "percentage")
	require.Empty(t, repo.items)
}

func TestPublicFiltersByLinkCategory(t *testing.T) {
	repo := &memoryRepo{items: []promotion.Promotion{
		{ID: 1, Title: "Tortas", Active: true, LinkCategory: catalog.CategoryCakes},
		{ID: 2, Title: "Postres", Active: true, LinkCategory: catalog.CategoryDesserts},
		{ID: 3, Title: "Pausada", Active: false, LinkCategory: catalog.CategoryCakes},
	}}
	h := &promotion.Handler{Repo: repo, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions?category=tortas", nil)
	rec := httptest.NewRecorder()
	h.Public(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data []promotion.Promotion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	require.Equal(t, int64(1), payload.Data[0].ID)
}

func TestAdminDeleteUnknownReturnsNotFound(t *testing.T) {
	h := &promotion.Handler{Repo: &memoryRepo{}, Logger: zerolog.Nop()}
	req := withID(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/promotions/9", nil), "9")
	rec := httptest.NewRecorder()
	h.AdminDelete(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
