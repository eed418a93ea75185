// Package pricing derives the price breakdown of a cart. Nothing here is
// stored; callers recompute on every read.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var (
	DefaultDeliveryFee = decimal.RequireFromString("2.99")
	TaxRate            = decimal.RequireFromString("0.10")
)

type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// Price computes the breakdown for cart. A nil restaurant or a restaurant
// without a fee gets DefaultDeliveryFee; an explicit zero fee is free delivery.
func Price(cart domain.Cart, restaurant *domain.Restaurant) Breakdown {
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	fee := DefaultDeliveryFee
	if restaurant != nil && restaurant.DeliveryFee != nil {
		fee = *restaurant.DeliveryFee
	}

	tax := subtotal.Mul(TaxRate).Round(2)

	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Tax:         tax,
		Total:       subtotal.Add(tax).Add(fee),
	}
}
