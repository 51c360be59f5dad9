// Package handler contains the HTTP handlers of the dispensary service API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/middleware"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/service"
)

// Service defines the business logic contract used by the HTTP handlers.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password, businessName string, businessID int64) (*service.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	SendPasswordReset(ctx context.Context, email string) error
	ResetRedirectURL(token string) string
	ValidateResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password string) error

	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string, businessID int64) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string, businessID int64) (*model.User, error)
	LookupUser(ctx context.Context, email, phone string, businessID int64) (*model.User, error)
	GetUsersByBusiness(ctx context.Context, businessID int64) ([]model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdateUser(ctx context.Context, id int64, in service.UpdateUserInput) (*model.User, error)
	AddPoints(ctx context.Context, userID int64, amount float64) (int64, error)
	RedeemPoints(ctx context.Context, userID int64, amount float64) (int64, error)
	UpdatePushToken(ctx context.Context, email, token string) error
	GetPushToken(ctx context.Context, userID int64) (string, error)
	ToggleNotifications(ctx context.Context, userID int64) (bool, error)
	UpgradeMembership(ctx context.Context, userID int64) error
	DowngradeMembership(ctx context.Context, userID int64) error
	CreateReferral(ctx context.Context, referrerID int64, email, phone string) (*model.Referral, error)
	GetReferralsByUser(ctx context.Context, referrerID int64) ([]model.Referral, error)
	ReconcileUserOrders(ctx context.Context, userID int64) ([]pos.OrderStatus, error)

	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetOrdersByBusiness(ctx context.Context, businessID int64) ([]model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetPendingOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)

	CreateBusiness(ctx context.Context, name string) (*model.Business, error)
	GetAllBusinesses(ctx context.Context) ([]model.Business, error)
	GetBusinessByID(ctx context.Context, id int64) (*model.Business, error)
	UpdateBusiness(ctx context.Context, id int64, upd repository.BusinessUpdate) (*model.Business, error)
	DeleteBusiness(ctx context.Context, id int64) error
	SendBusinessEmail(ctx context.Context, to, subject, text, html string) error

	SendPushToUser(ctx context.Context, userID int64, title, body string) (*model.Notification, error)
	GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	DeleteNotification(ctx context.Context, id int64) error
	DeleteNotificationsByUser(ctx context.Context, userID int64) error
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error

	GetAllProducts(ctx context.Context, businessID int64) ([]model.Product, error)
}

// Handler implements the HTTP handlers of the dispensary service API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP request handler.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type apiError struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Issue string `json:"issue,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, apiError{Error: msg})
}

func (h *Handler) writeFieldError(w http.ResponseWriter, status int, msg, field, issue string) {
	h.writeJSON(w, status, apiError{Error: msg, Field: field, Issue: issue})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// currentUser extracts the authenticated user id, replying 401 when absent.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return 0, false
	}
	return userID, true
}

// currentBusiness extracts the session's business id, replying 401 when absent.
func (h *Handler) currentBusiness(w http.ResponseWriter, r *http.Request) (int64, bool) {
	businessID, ok := middleware.GetBusinessIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return 0, false
	}
	return businessID, true
}
