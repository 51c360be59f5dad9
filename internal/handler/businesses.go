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

type createBusinessRequest struct {
	Name string `json:"name"`
}

// RegisterBusiness creates a new business tenant.
func (h *Handler) RegisterBusiness(w http.ResponseWriter, r *http.Request) {
	var req createBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeFieldError(w, http.StatusBadRequest, "business name is required", "name", "missing")
		return
	}

	business, err := h.service.CreateBusiness(r.Context(), req.Name)
	if err != nil {
		h.internalError(w, "create business error", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, business)
}

// GetBusinesses lists every registered business.
func (h *Handler) GetBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.service.GetAllBusinesses(r.Context())
	if err != nil {
		h.internalError(w, "get businesses error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, businesses)
}

// GetBusinessByID returns one business.
func (h *Handler) GetBusinessByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid business id", "id", "not a number")
		return
	}

	business, err := h.service.GetBusinessByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			h.writeError(w, http.StatusNotFound, "business not found")
			return
		}
		h.internalError(w, "get business error", err, zap.Int64("businessID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, business)
}

type updateBusinessRequest struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateBusiness applies a partial update to the caller's business, or to
// another one when an id is supplied.
func (h *Handler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	var req updateBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID != 0 {
		businessID = req.ID
	}

	business, err := h.service.UpdateBusiness(r.Context(), businessID, repository.BusinessUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			h.writeError(w, http.StatusNotFound, "business not found")
			return
		}
		h.internalError(w, "update business error", err, zap.Int64("businessID", businessID))
		return
	}
	h.writeJSON(w, http.StatusOK, business)
}

// DeleteBusiness removes a business.
func (h *Handler) DeleteBusiness(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeFieldError(w, http.StatusBadRequest, "invalid business id", "id", "not a number")
		return
	}

	if err := h.service.DeleteBusiness(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			h.writeError(w, http.StatusNotFound, "business not found")
			return
		}
		h.internalError(w, "delete business error", err, zap.Int64("businessID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type businessEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// SendBusinessEmail sends an email on behalf of the caller's business.
func (h *Handler) SendBusinessEmail(w http.ResponseWriter, r *http.Request) {
	var req businessEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SendBusinessEmail(r.Context(), req.To, req.Subject, req.Text, req.HTML); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, "recipient and subject are required")
			return
		}
		h.internalError(w, "send business email error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "email sent"})
}
