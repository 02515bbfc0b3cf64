package promotion

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/common"
)

const dateLayout = "2006-01-02"

// Repository is the persistence surface used by the handlers.
type Repository interface {
	ListActive(ctx context.Context) ([]Promotion, error)
	ListByLinkCategory(ctx context.Context, category catalog.Category) ([]Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Get(ctx context.Context, id int64) (Promotion, error)
	Create(ctx context.Context, p Promotion) (Promotion, error)
	Update(ctx context.Context, p Promotion) (Promotion, error)
	Delete(ctx context.Context, id int64) error
}

// Handler serves the public promotion listing and the staff CRUD endpoints.
type Handler struct {
	Repo   Repository
	Logger zerolog.Logger
}

// Request is the staff payload for creating or replacing a promotion.
type Request struct {
	Title                string `json:"title" validate:"required,max=100"`
	Label                string `json:"label" validate:"max=50"`
	Description          string `json:"description"`
	ImageURL             string `json:"imageUrl"`
	Kind                 string `json:"kind" validate:"required"`
	Percentage           *int   `json:"percentage"`
	SecondUnitPercentage *int   `json:"secondUnitPercentage"`
	ProductID            *int64 `json:"productId"`
	Category             string `json:"category"`
	LinkCategory         string `json:"linkCategory"`
	ActiveFrom           string `json:"activeFrom"`
	ActiveUntil          string `json:"activeUntil"`
	LimitedToStock       bool   `json:"limitedToStock"`
	Active               *bool  `json:"active"`
	ValidityNote         string `json:"validityNote" validate:"max=100"`
}

// Promotion converts the request into a domain value, normalising spellings.
func (req Request) Promotion() (Promotion, error) {
	fields := map[string]string{}
	p := Promotion{
		Title:                strings.TrimSpace(req.Title),
		Label:                strings.TrimSpace(req.Label),
		Description:          req.Description,
		ImageURL:             req.ImageURL,
		Percentage:           req.Percentage,
		SecondUnitPercentage: req.SecondUnitPercentage,
		ProductID:            req.ProductID,
		LimitedToStock:       req.LimitedToStock,
		Active:               true,
		ValidityNote:         req.ValidityNote,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if kind, err := ParseKind(req.Kind); err != nil {
		fields["kind"] = "is invalid"
	} else {
		p.Kind = kind
	}
	if scope, err := normalizeScope(req.Category); err != nil {
		fields["category"] = "is invalid"
	} else {
		p.Category = scope
	}
	if link, err := normalizeScope(req.LinkCategory); err != nil {
		fields["linkCategory"] = "is invalid"
	} else {
		p.LinkCategory = link
	}
	if from, ok := parseDate(req.ActiveFrom); !ok {
		fields["activeFrom"] = "must be a YYYY-MM-DD date"
	} else {
		p.ActiveFrom = from
	}
	if until, ok := parseDate(req.ActiveUntil); !ok {
		fields["activeUntil"] = "must be a YYYY-MM-DD date"
	} else {
		p.ActiveUntil = until
	}
	if len(fields) > 0 {
		return Promotion{}, &ValidationError{Fields: fields}
	}
	if err := Validate(p); err != nil {
		return Promotion{}, err
	}
	return p, nil
}

// Public handles GET /api/v1/promotions.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return
	}
	var (
		items []Promotion
		err   error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, parseErr := catalog.ParseCategory(raw)
		if parseErr != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category", nil)
			return
		}
		items, err = h.Repo.ListByLinkCategory(r.Context(), category)
	} else {
		items, err = h.Repo.ListActive(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// AdminList handles GET /api/v1/admin/promotions.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repo.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// AdminGet handles GET /api/v1/admin/promotions/{id}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// AdminCreate handles POST /api/v1/admin/promotions.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	p, err := req.Promotion()
	if err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.Repo.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info().Int64("promotion_id", created.ID).Str("kind", string(created.Kind)).Msg("promotion created")
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// AdminUpdate handles PUT /api/v1/admin/promotions/{id}.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	p, err := req.Promotion()
	if err != nil {
		h.writeError(w, err)
		return
	}
	p.ID = id
	updated, err := h.Repo.Update(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// AdminDelete handles DELETE /api/v1/admin/promotions/{id}.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid promotion", verr.Fields)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		h.Logger.Error().Err(err).Msg("promotion request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return 0, false
	}
	return id, true
}

func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
