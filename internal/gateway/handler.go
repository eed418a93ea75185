// Package gateway is the single public entry point; it routes /orders,
// /deliveries and /payments to the owning service.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Handler struct {
	ordersProxy     *ServiceProxy
	deliveriesProxy *ServiceProxy
	paymentsProxy   *ServiceProxy
	metrics         http.Handler
	logger          *slog.Logger
}

type Option func(*Handler)

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(handler *Handler) {
		handler.metrics = h
	}
}

func NewHandler(ordersProxy, deliveriesProxy, paymentsProxy *ServiceProxy, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		ordersProxy:     ordersProxy,
		deliveriesProxy: deliveriesProxy,
		paymentsProxy:   paymentsProxy,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the public router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", withRoute(h.HandleOrders))
		r.Post("/", withRoute(h.HandleOrders))
		r.Get("/{id}", withRoute(h.HandleOrders))
		r.Put("/{id}/status", withRoute(h.HandleOrders))
		r.Put("/{id}/payment", withRoute(h.HandleOrders))
	})

	r.Route("/deliveries", func(r chi.Router) {
		r.Post("/", withRoute(h.HandleDeliveries))
		r.Get("/all", withRoute(h.HandleDeliveries))
		r.Get("/{id}", withRoute(h.HandleDeliveries))
		r.Post("/{id}/assign", withRoute(h.HandleDeliveries))
		r.Patch("/{id}/status", withRoute(h.HandleDeliveries))
	})

	r.Post("/payments/create-payment-intent", withRoute(h.HandlePayments))

	return r
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.deliveriesProxy, r.URL.Path)
}

func (h *Handler) HandlePayments(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.paymentsProxy, r.URL.Path)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "service", proxy.Name(), "path", path,
			"request_id", middleware.GetReqID(r.Context()))
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range returnedHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "service", proxy.Name(), "method", r.Method, "path", path, "status", resp.StatusCode,
		"request_id", middleware.GetReqID(r.Context()))

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// withRoute names the server span after the matched chi pattern, which is only
// known once routing has finished.
func withRoute(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				span := oteltrace.SpanFromContext(r.Context())
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(semconv.HTTPRoute(pattern))
			}
		}
		next(w, r)
	}
}
