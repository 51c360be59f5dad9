package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/service"
)

type sendPushRequest struct {
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// SendPush delivers a push notification to a user and stores it in their
// notification list.
func (h *Handler) SendPush(w http.ResponseWriter, r *http.Request) {
	var req sendPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 || req.Title == "" {
		h.writeFieldError(w, http.StatusBadRequest, "user_id and title are required", "user_id", "missing")
		return
	}

	notification, err := h.service.SendPushToUser(r.Context(), req.UserID, req.Title, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrPushUnavailable):
			h.writeError(w, http.StatusUnprocessableEntity, "user cannot receive notifications")
		default:
			h.internalError(w, "send push error", err, zap.Int64("userID", req.UserID))
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, notification)
}

// GetNotifications lists a user's stored notifications. The caller's own
// list is returned unless a userId query parameter is supplied.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeFieldError(w, http.StatusBadRequest, "invalid user id", "userId", "not a number")
			return
		}
		userID = id
	}

	notifications, err := h.service.GetNotificationsByUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, "get notifications error", err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, notifications)
}

// DeleteNotification removes one notification.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid notification id", "id", "not a number")
		return
	}

	if err := h.service.DeleteNotification(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			h.writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.internalError(w, "delete notification error", err, zap.Int64("notificationID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllNotifications clears the caller's notification list.
func (h *Handler) DeleteAllNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNotificationsByUser(r.Context(), userID); err != nil {
		h.internalError(w, "delete notifications error", err, zap.Int64("userID", userID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkNotificationRead marks one notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid notification id", "id", "not a number")
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			h.writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.internalError(w, "mark notification read error", err, zap.Int64("notificationID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks all of the caller's notifications as read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAllNotificationsRead(r.Context(), userID); err != nil {
		h.internalError(w, "mark all notifications read error", err, zap.Int64("userID", userID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
