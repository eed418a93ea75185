// Package payments is a stand-in payment processor that issues payment
// intents after a short, randomised delay.
package payments

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type Handler struct {
	maxAmount decimal.Decimal
	minDelay  time.Duration
	jitter    time.Duration
	logger    *slog.Logger
}

type Option func(*Handler)

// WithDelay sets the simulated processing time to min plus up to jitter.
func WithDelay(min, jitter time.Duration) Option {
	return func(h *Handler) {
		h.minDelay = min
		h.jitter = jitter
	}
}

// NewHandler declines intents above maxAmount with 402 Payment Required.
func NewHandler(maxAmount decimal.Decimal, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		maxAmount: maxAmount,
		minDelay:  50 * time.Millisecond,
		jitter:    150 * time.Millisecond,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case strings.TrimSpace(req.OrderID) == "":
		h.writeError(w, http.StatusBadRequest, "order_id is required")
		return
	case !req.Amount.IsPositive():
		h.writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	case !strings.EqualFold(req.Currency, domain.CurrencyUSD):
		h.writeError(w, http.StatusBadRequest, "unsupported currency")
		return
	}

	h.sleep(r)

	if req.Amount.GreaterThan(h.maxAmount) {
		h.logger.Warn("payment declined", "order_id", req.OrderID, "amount", req.Amount.String())
		h.writeError(w, http.StatusPaymentRequired, "card declined")
		return
	}

	id := uuid.New().String()
	intent := domain.PaymentIntent{
		ID:           "pi_" + strings.ReplaceAll(id, "-", ""),
		OrderID:      req.OrderID,
		ClientSecret: "pi_secret_" + uuid.New().String(),
		Amount:       req.Amount,
		Currency:     domain.CurrencyUSD,
		Status:       "requires_confirmation",
	}

	h.logger.Info("payment intent created", "order_id", req.OrderID, "payment_id", intent.ID, "amount", req.Amount.String())
	h.writeJSON(w, http.StatusOK, intent)
}

func (h *Handler) sleep(r *http.Request) {
	delay := h.minDelay
	if h.jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(h.jitter) + 1))
	}
	if delay <= 0 {
		return
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Context().Done():
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
