package domain

import "github.com/shopspring/decimal"

type Restaurant struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Address     string           `json:"address,omitempty"`
	DeliveryFee *decimal.Decimal `json:"delivery_fee,omitempty"`
}

type MenuItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CartItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Cart is empty when RestaurantID is "".
type Cart struct {
	RestaurantID string     `json:"restaurant_id,omitempty"`
	Items        []CartItem `json:"items"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
