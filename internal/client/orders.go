package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, "create order", http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches the server-authoritative order. Concurrent reads of the
// same id share one request.
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	v, err, _ := c.group.Do("order:"+id, func() (any, error) {
		var order domain.Order
		if err := c.do(ctx, "get order", http.MethodGet, "/orders/"+url.PathEscape(id), nil, &order); err != nil {
			return nil, err
		}
		return &order, nil
	})
	if err != nil {
		return nil, err
	}

	order := *v.(*domain.Order)
	order.Items = slices.Clone(order.Items)
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	q := url.Values{}
	if filter.RestaurantID != "" {
		q.Set("restaurant_id", filter.RestaurantID)
	}
	if filter.CustomerID != "" {
		q.Set("customer_id", filter.CustomerID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	path := "/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var orders []domain.Order
	if err := c.do(ctx, "list orders", http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus sends a guarded transition. A *ConflictError carries the
// current order when the server rejects it.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, "update order status", http.MethodPut, "/orders/"+url.PathEscape(id)+"/status", update, &order)
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) && len(ce.raw) > 0 {
			var current domain.Order
			if json.Unmarshal(ce.raw, &current) == nil {
				ce.Order = &current
			}
		}
		return nil, err
	}
	return &order, nil
}

func (c *Client) RecordPayment(ctx context.Context, id string, record domain.PaymentRecord) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, "record payment", http.MethodPut, "/orders/"+url.PathEscape(id)+"/payment", record, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	if err := c.do(ctx, "create payment intent", http.MethodPost, "/payments/create-payment-intent", req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
