// Package deliveries serves the delivery records that couriers accept and
// advance through pickup and drop-off.
package deliveries

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context) ([]domain.Delivery, error)
	Assign(ctx context.Context, id, driverID string) (*domain.Delivery, error)
	UpdateStatus(ctx context.Context, id string, update domain.DeliveryStatusUpdate) (*domain.Delivery, error)
}

type Handler struct {
	repo   Repository
	logger *slog.Logger
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.DeliveryAddress) == "" {
		h.writeError(w, http.StatusBadRequest, "order_id and delivery_address are required")
		return
	}

	d := &domain.Delivery{
		OrderID:         req.OrderID,
		RestaurantID:    req.RestaurantID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}

	if err := h.repo.Create(r.Context(), d); err != nil {
		if h.writeConflict(w, err) {
			return
		}
		h.logger.Error("failed to create delivery", "error", err, "order_id", req.OrderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("delivery created", "delivery_id", d.ID, "order_id", d.OrderID)
	h.writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list deliveries", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("deliveries listed", "count", len(deliveries))
	h.writeJSON(w, http.StatusOK, deliveries)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	d, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get delivery", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if d == nil {
		h.writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req domain.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		h.writeError(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	d, err := h.repo.Assign(r.Context(), id, req.DriverID)
	if err != nil {
		if h.writeConflict(w, err) {
			return
		}
		h.logger.Error("failed to assign delivery", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if d == nil {
		h.writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	h.logger.Info("delivery assigned", "delivery_id", d.ID, "order_id", d.OrderID, "driver_id", d.DriverID)
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req domain.DeliveryStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" || req.ExpectedStatus == "" {
		h.writeError(w, http.StatusBadRequest, "status and expected_status are required")
		return
	}

	d, err := h.repo.UpdateStatus(r.Context(), id, req)
	if err != nil {
		if h.writeConflict(w, err) {
			return
		}
		h.logger.Error("failed to update delivery status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if d == nil {
		h.writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	h.logger.Info("delivery status updated", "delivery_id", d.ID, "order_id", d.OrderID, "status", d.Status)
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		h.writeError(w, http.StatusNotFound, "delivery not found")
		return "", false
	}
	return id, true
}

func (h *Handler) writeConflict(w http.ResponseWriter, err error) bool {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return false
	}
	h.logger.Warn("delivery write rejected", "reason", ce.Reason)
	h.writeJSON(w, http.StatusConflict, map[string]any{"error": ce.Reason, "current": ce.Current})
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
