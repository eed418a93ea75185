package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

func (c *Client) CreateDelivery(ctx context.Context, req domain.CreateDeliveryRequest) (*domain.Delivery, error) {
	var delivery domain.Delivery
	if err := c.do(ctx, "create delivery", http.MethodPost, "/deliveries", req, &delivery); err != nil {
		return nil, err
	}
	return &delivery, nil
}

// ListDeliveries returns every delivery; callers filter by driver.
func (c *Client) ListDeliveries(ctx context.Context) ([]domain.Delivery, error) {
	var deliveries []domain.Delivery
	if err := c.do(ctx, "list deliveries", http.MethodGet, "/deliveries/all", nil, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (c *Client) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	var delivery domain.Delivery
	if err := c.do(ctx, "get delivery", http.MethodGet, "/deliveries/"+url.PathEscape(id), nil, &delivery); err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (c *Client) AssignDelivery(ctx context.Context, id, driverID string) (*domain.Delivery, error) {
	var delivery domain.Delivery
	err := c.do(ctx, "assign delivery", http.MethodPost, "/deliveries/"+url.PathEscape(id)+"/assign",
		domain.AssignRequest{DriverID: driverID}, &delivery)
	if err != nil {
		return nil, withCurrentDelivery(err)
	}
	return &delivery, nil
}

func (c *Client) UpdateDeliveryStatus(ctx context.Context, id string, update domain.DeliveryStatusUpdate) (*domain.Delivery, error) {
	var delivery domain.Delivery
	err := c.do(ctx, "update delivery status", http.MethodPatch, "/deliveries/"+url.PathEscape(id)+"/status", update, &delivery)
	if err != nil {
		return nil, withCurrentDelivery(err)
	}
	return &delivery, nil
}

func withCurrentDelivery(err error) error {
	var ce *ConflictError
	if errors.As(err, &ce) && len(ce.raw) > 0 {
		var current domain.Delivery
		if json.Unmarshal(ce.raw, &current) == nil {
			ce.Delivery = &current
		}
	}
	return err
}
