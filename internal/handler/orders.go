package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/service"
)

type orderItemRequest struct {
	ItemID   int64   `json:"item_id"`
	Title    string  `json:"title"`
	Brand    string  `json:"brand"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type createOrderRequest struct {
	UserID       int64              `json:"user_id"`
	EmployeeID   *int64             `json:"employee_id"`
	PosOrderID   string             `json:"pos_order_id"`
	PointsAdd    float64            `json:"points_add"`
	PointsRedeem float64            `json:"points_redeem"`
	TotalAmount  float64            `json:"total_amount"`
	Items        []orderItemRequest `json:"items"`
}

// CreateOrder records a checkout for the caller, or for another user when an
// employee passes a user id.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = callerID
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.OrderItem{
			ItemID:   it.ItemID,
			Title:    it.Title,
			Brand:    it.Brand,
			Category: it.Category,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		UserID:       userID,
		EmployeeID:   req.EmployeeID,
		PosOrderID:   req.PosOrderID,
		PointsAdd:    req.PointsAdd,
		PointsRedeem: req.PointsRedeem,
		TotalAmount:  req.TotalAmount,
		Items:        items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConflictingPoints):
			h.writeFieldError(w, http.StatusBadRequest, "order cannot both earn and redeem points", "points_redeem", "conflicts with points_add")
		case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrInsufficientPoints):
			h.writeFieldError(w, http.StatusUnprocessableEntity, "insufficient points", "points_redeem", "exceeds balance")
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		default:
			h.internalError(w, "create order error", err, zap.Int64("userID", userID))
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

// GetOrders lists the orders of the caller's business.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByBusiness(r.Context(), businessID)
	if err != nil {
		h.internalError(w, "get orders error", err, zap.Int64("businessID", businessID))
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetUserOrders lists the caller's own orders.
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, "get user orders error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetPendingOrders lists the caller's orders still awaiting POS completion.
func (h *Handler) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetPendingOrdersByUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, "get pending orders error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetOrderByID returns one order with its items.
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid order id", "id", "not a number")
		return
	}

	order, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.internalError(w, "get order error", err, zap.Int64("orderID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}
