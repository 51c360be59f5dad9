package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/middleware"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/service"
)

type registerRequest struct {
	FirstName  string `json:"fname"`
	LastName   string `json:"lname"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	DOB        string `json:"dob"`
	Country    string `json:"country"`
	BusinessID int64  `json:"business_id"`
}

// Register creates a new user account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.Phone,
		DOB:        req.DOB,
		Country:    req.Country,
		BusinessID: req.BusinessID,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserExists):
			h.writeFieldError(w, http.StatusConflict, "account already exists", "email", "taken")
		case errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, "register user error", err)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	BusinessName string `json:"businessName"`
	BusinessID   int64  `json:"businessId"`
}

type loginResponse struct {
	SessionID string      `json:"sessionId"`
	ExpiresAt string      `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// Login authenticates a user and returns the session credential.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.BusinessName, req.BusinessID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.internalError(w, "login error", err)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{
		SessionID: result.Session.SessionID,
		ExpiresAt: result.Session.ExpiresAt.Format(time.RFC3339),
		User:      result.User,
	})
}

// Logout deletes the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		h.internalError(w, "logout error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateSession confirms the caller's session and refreshes their pending
// orders against the POS, returning the statuses fetched.
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	statuses, err := h.service.ReconcileUserOrders(r.Context(), userID)
	if err != nil {
		h.internalError(w, "reconcile user orders error", err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"orders": statuses,
	})
}

// GetUsers lists the users of the caller's business.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	users, err := h.service.GetUsersByBusiness(r.Context(), businessID)
	if err != nil {
		h.internalError(w, "get users error", err, zap.Int64("businessID", businessID))
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

// GetUserByID returns one user by id.
func (h *Handler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid user id", "id", "not a number")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, "get user error", err, zap.Int64("userID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// GetUserByEmail returns the user with the given email within the caller's
// business.
func (h *Handler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		h.writeFieldError(w, http.StatusBadRequest, "email is required", "email", "missing")
		return
	}

	user, err := h.service.GetUserByEmail(r.Context(), email, businessID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, "get user by email error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// GetUserByPhone returns the user matching the phone number within the
// caller's business.
func (h *Handler) GetUserByPhone(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	phone := r.URL.Query().Get("phone")
	if phone == "" {
		h.writeFieldError(w, http.StatusBadRequest, "phone is required", "phone", "missing")
		return
	}

	user, err := h.service.GetUserByPhone(r.Context(), phone, businessID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrInvalidInput):
			h.writeFieldError(w, http.StatusBadRequest, "invalid phone number", "phone", "unparseable")
		default:
			h.internalError(w, "get user by phone error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// LookupUser finds a customer by email or phone within the caller's
// business, for checkout lookups where either identifier may be on file.
func (h *Handler) LookupUser(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	email := r.URL.Query().Get("email")
	phone := r.URL.Query().Get("phone")

	user, err := h.service.LookupUser(r.Context(), email, phone, businessID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, "an email or phone number is required")
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		default:
			h.internalError(w, "lookup user error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid user id", "id", "not a number")
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, "delete user error", err, zap.Int64("userID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateUserRequest struct {
	UserID             int64   `json:"user_id"`
	FirstName          *string `json:"fname"`
	LastName           *string `json:"lname"`
	Email              *string `json:"email"`
	DOB                *string `json:"dob"`
	Country            *string `json:"country"`
	Phone              *string `json:"phone"`
	AllowNotifications *bool   `json:"allow_notifications"`
}

// UpdateUser applies a partial profile update. The caller's own account is
// updated unless a user id is supplied.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID != 0 {
		userID = req.UserID
	}

	user, err := h.service.UpdateUser(r.Context(), userID, service.UpdateUserInput{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		DOB:                req.DOB,
		Country:            req.Country,
		Phone:              req.Phone,
		AllowNotifications: req.AllowNotifications,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, "update user error", err, zap.Int64("userID", userID))
		}
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

type pointsRequest struct {
	UserID int64   `json:"user_id"`
	Points float64 `json:"points"`
}

type pointsResponse struct {
	UserID  int64 `json:"user_id"`
	Points  int64 `json:"points"`
	Applied int64 `json:"applied"`
}

// AddPoints credits loyalty points to a user.
func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	h.applyPoints(w, r, h.service.AddPoints, "add points error")
}

// RedeemPoints debits loyalty points from a user.
func (h *Handler) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	h.applyPoints(w, r, h.service.RedeemPoints, "redeem points error")
}

func (h *Handler) applyPoints(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, userID int64, amount float64) (int64, error), logMsg string) {
	callerID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = callerID
	}

	balance, err := apply(r.Context(), userID, req.Points)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			h.writeFieldError(w, http.StatusBadRequest, "invalid point amount", "points", "must be a positive number")
		case errors.Is(err, repository.ErrInsufficientPoints):
			h.writeFieldError(w, http.StatusUnprocessableEntity, "insufficient points", "points", "exceeds balance")
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		default:
			h.internalError(w, logMsg, err, zap.Int64("userID", userID))
		}
		return
	}

	h.writeJSON(w, http.StatusOK, pointsResponse{
		UserID:  userID,
		Points:  balance,
		Applied: int64(req.Points),
	})
}

type pushTokenRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// UpdatePushToken stores a device push token against a user account.
func (h *Handler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdatePushToken(r.Context(), req.Email, req.Token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, "email and token are required")
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		default:
			h.internalError(w, "update push token error", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPushToken returns the caller's stored device push token.
func (h *Handler) GetPushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	token, err := h.service.GetPushToken(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, "get push token error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"pushToken": token})
}

// ToggleNotifications flips the caller's push opt-in.
func (h *Handler) ToggleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	enabled, err := h.service.ToggleNotifications(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, "toggle notifications error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"allow_notifications": enabled})
}

// UpgradeMembership grants the caller premium status.
func (h *Handler) UpgradeMembership(w http.ResponseWriter, r *http.Request) {
	h.setMembership(w, r, h.service.UpgradeMembership, "upgrade membership error")
}

// DowngradeMembership revokes the caller's premium status.
func (h *Handler) DowngradeMembership(w http.ResponseWriter, r *http.Request) {
	h.setMembership(w, r, h.service.DowngradeMembership, "downgrade membership error")
}

func (h *Handler) setMembership(w http.ResponseWriter, r *http.Request,
	set func(ctx context.Context, userID int64) error, logMsg string) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := set(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, logMsg, err, zap.Int64("userID", userID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a password reset email. The response does not reveal
// whether the address has an account.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.SendPasswordReset(r.Context(), req.Email); err != nil {
		h.internalError(w, "send password reset error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

// ResetRedirect forwards a reset email's web link into the mobile app.
func (h *Handler) ResetRedirect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	http.Redirect(w, r, h.service.ResetRedirectURL(token), http.StatusFound)
}

// ValidateResetToken reports whether a password reset token is still usable.
func (h *Handler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	if err := h.service.ValidateResetToken(r.Context(), token); err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			h.writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
			return
		}
		h.internalError(w, "validate reset token error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword sets a new password using a reset token.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidResetToken):
			h.writeError(w, http.StatusUnauthorized, "invalid or expired reset token")
		case errors.Is(err, service.ErrInvalidInput):
			h.writeFieldError(w, http.StatusBadRequest, "invalid password", "password", "too short")
		default:
			h.internalError(w, "reset password error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

type referralRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateReferral records an invitation from the caller.
func (h *Handler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req referralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	referral, err := h.service.CreateReferral(r.Context(), userID, req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, "an email or phone number is required")
			return
		}
		h.internalError(w, "create referral error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusCreated, referral)
}

// GetReferrals lists the caller's referrals.
func (h *Handler) GetReferrals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	referrals, err := h.service.GetReferralsByUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, "get referrals error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, referrals)
}
