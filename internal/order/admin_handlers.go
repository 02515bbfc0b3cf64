package order

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasteleria/internal/common"
)

// AdminHandler provides staff order management and sales reports.
type AdminHandler struct {
	Repo     Repository
	Logger   zerolog.Logger
	Location *time.Location
	Now      func() time.Time
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *AdminHandler) now() time.Time {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	if h.Location != nil {
		now = now.In(h.Location)
	}
	return now
}

func (h *AdminHandler) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.UTC
}

// List handles GET /api/v1/admin/orders?from=&to=&delivery=&status=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	filter := ListFilter{From: from, To: to}
	if v := strings.TrimSpace(q.Get("delivery")); v != "" {
		delivery, err := ParseDeliveryType(v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid delivery type", nil)
			return
		}
		filter.Delivery = delivery
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, err := ParseStatus(v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid status", nil)
			return
		}
		filter.Status = status
	}
	page, perPage := common.ParsePagination(r, 50)
	filter.Limit, filter.Offset = perPage, common.Pagination{Page: page, PerPage: perPage}.Offset()

	orders, total, err := h.Repo.List(r.Context(), filter)
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

// Get handles GET /api/v1/admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": withSubtotals(o)})
}

// PatchStatus handles PATCH /api/v1/admin/orders/{id}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
		return
	}
	updated, err := h.Repo.UpdateStatus(r.Context(), id, target)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Info().Int64("order_id", id).Str("status", string(updated.Status)).Msg("order status updated")
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Dashboard handles GET /api/v1/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Repo.Dashboard(r.Context(), h.now())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// TopProducts handles GET /api/v1/admin/reports/top-products?from=&to=&limit=.
func (h *AdminHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	rows, err := h.Repo.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// dateRange parses inclusive from/to civil dates into a half-open time range.
func (h *AdminHandler) dateRange(w http.ResponseWriter, r *http.Request) (*time.Time, *time.Time, bool) {
	q := r.URL.Query()
	var from, to *time.Time
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.location())
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be a YYYY-MM-DD date", nil)
			return nil, nil, false
		}
		from = &d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, h.location())
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "to must be a YYYY-MM-DD date", nil)
			return nil, nil, false
		}
		end := d.AddDate(0, 0, 1)
		to = &end
	}
	return from, to, true
}
