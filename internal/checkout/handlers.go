package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasteleria/internal/auth"
	"github.com/noah-isme/backend-pasteleria/internal/cart"
	"github.com/noah-isme/backend-pasteleria/internal/common"
	"github.com/noah-isme/backend-pasteleria/internal/order"
	"github.com/noah-isme/backend-pasteleria/internal/payment"
)

// Handler exposes the checkout flow over HTTP.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type returnRequest struct {
	Token    string `json:"token"`
	Aborted  string `json:"abortedToken"`
	BuyOrder string `json:"buyOrder"`
}

// Review handles POST /api/v1/checkout.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Begin(r.Context(), session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Pay handles POST /api/v1/checkout/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Start(r.Context(), session, Customer{UserID: p.UserID, Email: p.Email}, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// Return handles POST /api/v1/checkout/return, the gateway's redirect back.
// A token_ws commits the payment; TBK_TOKEN with TBK_ORDEN_COMPRA means the
// shopper abandoned the payment form.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	req, err := readReturn(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	switch {
	case req.Token != "":
		res, err := h.Svc.Finalize(r.Context(), req.Token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": res})
	case req.Aborted != "" && req.BuyOrder != "":
		userID, ok := common.UserID(r.Context())
		if !ok || userID == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		id, err := strconv.ParseInt(req.BuyOrder, 10, 64)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid buy order", nil)
			return
		}
		res, err := h.Svc.Cancel(r.Context(), userID, id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": res})
	default:
		common.JSONError(w, http.StatusBadRequest, "PAYMENT_ABORTED", "the transaction was cancelled or is missing its token", nil)
	}
}

func readReturn(r *http.Request) (returnRequest, error) {
	var req returnRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Token = r.Form.Get("token_ws")
		req.Aborted = r.Form.Get("TBK_TOKEN")
		req.BuyOrder = r.Form.Get("TBK_ORDEN_COMPRA")
	}
	req.Token = strings.TrimSpace(req.Token)
	req.Aborted = strings.TrimSpace(req.Aborted)
	req.BuyOrder = strings.TrimSpace(req.BuyOrder)
	return req, nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return "", false
	}
	session, ok := cart.Session(r.Context())
	if !ok || session == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart session required", nil)
		return "", false
	}
	return session, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var stockErr *StockError
	switch {
	case errors.As(err, &stockErr):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", stockErr.Error(), map[string]any{
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrInvalidTotal):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_TOTAL", "order total must be positive", nil)
	case errors.Is(err, ErrAddressRequired):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "validation failed", map[string]string{"address": "is required for delivery"})
	case errors.Is(err, payment.ErrInvalidToken):
		common.JSONError(w, http.StatusBadRequest, "INVALID_TOKEN", "payment token is not valid", nil)
	case errors.Is(err, order.ErrNotFound), errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, order.ErrInvalidDeliveryType):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		h.Logger.Error().Err(err).Msg("checkout request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
