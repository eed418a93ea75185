package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// Well-known keys the cart is persisted under.
const (
	CartKey       = "cart"
	RestaurantKey = "restaurant"
)

type Storage interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Load reads the persisted cart and repairs anything that would break the
// cart invariants.
func Load(ctx context.Context, storage Storage) (State, error) {
	st, err := storage.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load cart: %w", err)
	}
	return Sanitize(st), nil
}

func encode(st State) (items []byte, restaurant []byte, err error) {
	list := st.Cart.Items
	if list == nil {
		list = []domain.CartItem{}
	}
	if items, err = json.Marshal(list); err != nil {
		return nil, nil, fmt.Errorf("marshal cart items: %w", err)
	}
	if st.Restaurant == nil {
		return items, nil, nil
	}
	if restaurant, err = json.Marshal(st.Restaurant); err != nil {
		return nil, nil, fmt.Errorf("marshal restaurant: %w", err)
	}
	return items, restaurant, nil
}

func decode(items, restaurant []byte) (State, error) {
	var st State
	if len(items) > 0 {
		if err := json.Unmarshal(items, &st.Cart.Items); err != nil {
			return State{}, fmt.Errorf("unmarshal cart items: %w", err)
		}
	}
	if len(restaurant) > 0 {
		var r domain.Restaurant
		if err := json.Unmarshal(restaurant, &r); err != nil {
			return State{}, fmt.Errorf("unmarshal restaurant: %w", err)
		}
		st.Restaurant = &r
		st.Cart.RestaurantID = r.ID
	}
	return st, nil
}
