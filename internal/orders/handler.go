package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Order, domain.OrderStatus, error)
	RecordPayment(ctx context.Context, id string, record domain.PaymentRecord) (*domain.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo        Repository
	publisher   Publisher
	logger      *slog.Logger
	transitions metric.Int64Counter
	conflicts   metric.Int64Counter
	lostEvents  metric.Int64Counter
}

// NewHandler builds the order service handlers. Every status change is
// published, so publisher is required.
func NewHandler(repo Repository, publisher Publisher, logger *slog.Logger) (*Handler, error) {
	if publisher == nil {
		return nil, errors.New("orders: publisher is required")
	}
	meter := otel.Meter("github.com/joao-fontenele/foodflow/internal/orders")

	transitions, err := meter.Int64Counter("orders.status.transitions",
		metric.WithDescription("Order status transitions applied"))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("orders.status.conflicts",
		metric.WithDescription("Order status updates rejected by the state guard"))
	if err != nil {
		return nil, err
	}
	lostEvents, err := meter.Int64Counter("orders.events.publish_failures",
		metric.WithDescription("Order status events that could not be published"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		repo:        repo,
		publisher:   publisher,
		logger:      logger,
		transitions: transitions,
		conflicts:   conflicts,
		lostEvents:  lostEvents,
	}, nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateCreate(req); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	order := &domain.Order{
		RestaurantID:        req.RestaurantID,
		CustomerID:          req.CustomerID,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		Items:               req.Items,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		PaymentMethod:       req.PaymentMethod,
		TotalAmount:         req.TotalAmount,
		Status:              domain.OrderStatusPending,
		CreatedAt:           time.Now().UTC(),
	}

	if err := h.repo.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publish(r.Context(), domain.OrderStatusEvent{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		To:           order.Status,
		Version:      order.Version,
		Timestamp:    order.CreatedAt,
	})

	h.logger.Info("order created", "order_id", order.ID, "restaurant_id", order.RestaurantID,
		"total", order.TotalAmount.String())
	h.writeJSON(w, http.StatusCreated, order)
}

func validateCreate(req domain.CreateOrderRequest) string {
	switch {
	case strings.TrimSpace(req.RestaurantID) == "":
		return "restaurant_id is required"
	case len(req.Items) == 0:
		return "order must contain at least one item"
	case strings.TrimSpace(req.DeliveryAddress) == "":
		return "delivery_address is required"
	case !req.PaymentMethod.Valid():
		return "payment_method must be card or cash"
	case strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "":
		return "customer_name and customer_phone are required"
	}

	subtotal := decimal.Zero
	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		if item.ItemID == "" || seen[item.ItemID] {
			return "items must have unique, non-empty item_id"
		}
		seen[item.ItemID] = true
		if item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return "items must have quantity >= 1 and a non-negative unit_price"
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if req.TotalAmount.LessThan(subtotal) {
		return "total_amount is less than the item subtotal"
	}
	return ""
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	if uuid.Validate(id) != nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	if uuid.Validate(id) != nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	var req domain.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" || req.ExpectedStatus == "" {
		h.writeError(w, http.StatusBadRequest, "status and expected_status are required")
		return
	}

	order, from, err := h.repo.UpdateStatus(r.Context(), id, req)
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			h.conflicts.Add(r.Context(), 1, metric.WithAttributes(
				attribute.String("from", string(from)),
				attribute.String("to", string(req.Status)),
			))
			h.logger.Warn("order status update rejected", "order_id", id, "reason", ce.Reason,
				"expected", req.ExpectedStatus, "requested", req.Status)
			h.writeJSON(w, http.StatusConflict, map[string]any{"error": ce.Reason, "current": ce.Current})
			return
		}
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.transitions.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(order.Status)),
	))
	h.publish(r.Context(), domain.OrderStatusEvent{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		From:         from,
		To:           order.Status,
		Version:      order.Version,
		Timestamp:    order.UpdatedAt,
	})

	h.logger.Info("order status updated", "order_id", order.ID, "from", from, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	var req domain.PaymentRecord
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentID == "" {
		h.writeError(w, http.StatusBadRequest, "payment_id is required")
		return
	}

	order, err := h.repo.RecordPayment(r.Context(), id, req)
	if err != nil {
		h.logger.Error("failed to record payment", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("payment recorded", "order_id", order.ID, "payment_id", order.PaymentID, "paid", order.IsPaid)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OrderFilter{
		RestaurantID: q.Get("restaurant_id"),
		CustomerID:   q.Get("customer_id"),
	}
	if s := q.Get("status"); s != "" {
		if err := filter.Status.UnmarshalText([]byte(s)); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	orders, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "restaurant_id", filter.RestaurantID)
	h.writeJSON(w, http.StatusOK, orders)
}

// publish runs after the status change has committed, so a failure cannot
// undo it. The dispatch worker's sweep opens deliveries for lost events.
func (h *Handler) publish(ctx context.Context, event domain.OrderStatusEvent) {
	if err := h.publisher.Publish(ctx, event.OrderID, event); err != nil {
		h.lostEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(event.To))))
		h.logger.Error("failed to publish order status event", "error", err, "order_id", event.OrderID, "status", event.To)
	}
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
