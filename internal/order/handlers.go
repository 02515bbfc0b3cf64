package order

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/common"
)

// Repository is the order persistence surface used by the handlers.
type Repository interface {
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id int64, target Status) (Order, error)
	Dashboard(ctx context.Context, now time.Time) (Dashboard, error)
	TopProducts(ctx context.Context, from, to *time.Time, limit int) ([]ProductSales, error)
}

// Handler exposes a customer's own orders.
type Handler struct {
	Repo   Repository
	Logger zerolog.Logger
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	pg := common.Pagination{Page: page, PerPage: perPage}
	orders, total, err := h.Repo.List(r.Context(), ListFilter{UserID: userID, Limit: perPage, Offset: pg.Offset()})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get handles GET /api/v1/orders/{id}. Customers only see their own orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if o.UserID != userID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": withSubtotals(o)})
}

type lineView struct {
	Line
	Subtotal decimal.Decimal `json:"subtotal"`
}

type orderView struct {
	Order
	Lines []lineView `json:"lines"`
}

func withSubtotals(o Order) orderView {
	v := orderView{Order: o, Lines: make([]lineView, 0, len(o.Lines))}
	for _, l := range o.Lines {
		v.Lines = append(v.Lines, lineView{Line: l, Subtotal: l.Subtotal()})
	}
	return v
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		logger.Error().Err(err).Msg("order request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
