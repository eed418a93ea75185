package cart

import (
	"errors"
	"slices"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// ErrDifferentRestaurant is returned when adding an item from a restaurant
// other than the one the cart already holds. The cart is left unchanged; it
// has to be cleared before switching restaurants.
var ErrDifferentRestaurant = errors.New("cart holds items from another restaurant")

// ErrMissingID is returned when adding an item whose restaurant or item id is
// blank. A cart with items always names its restaurant.
var ErrMissingID = errors.New("restaurant and item ids are required")

// State is the value the store owns: the cart plus the selected restaurant.
// Reducers never mutate their input.
type State struct {
	Cart       domain.Cart
	Restaurant *domain.Restaurant
}

func (s State) clone() State {
	out := State{
		Cart: domain.Cart{
			RestaurantID: s.Cart.RestaurantID,
			Items:        slices.Clone(s.Cart.Items),
		},
	}
	if s.Restaurant != nil {
		r := *s.Restaurant
		out.Restaurant = &r
	}
	return out
}

func (s State) index(itemID string) int {
	return slices.IndexFunc(s.Cart.Items, func(it domain.CartItem) bool {
		return it.ItemID == itemID
	})
}

// Add puts one unit of item into the cart, adopting restaurant when the cart
// is empty.
func Add(s State, restaurant domain.Restaurant, item domain.MenuItem) (State, error) {
	if restaurant.ID == "" || item.ID == "" {
		return s, ErrMissingID
	}
	if !s.Cart.IsEmpty() && s.Cart.RestaurantID != restaurant.ID {
		return s, ErrDifferentRestaurant
	}

	next := s.clone()
	if next.Cart.IsEmpty() {
		r := restaurant
		next.Cart.RestaurantID = restaurant.ID
		next.Restaurant = &r
	}

	if i := next.index(item.ID); i >= 0 {
		next.Cart.Items[i].Quantity++
		return next, nil
	}

	next.Cart.Items = append(next.Cart.Items, domain.CartItem{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  1,
	})
	return next, nil
}

func Remove(s State, itemID string) State {
	i := s.index(itemID)
	if i < 0 {
		return s
	}
	next := s.clone()
	next.Cart.Items = slices.Delete(next.Cart.Items, i, i+1)
	if next.Cart.IsEmpty() {
		return State{}
	}
	return next
}

func Increment(s State, itemID string) State {
	i := s.index(itemID)
	if i < 0 {
		return s
	}
	next := s.clone()
	next.Cart.Items[i].Quantity++
	return next
}

// Decrement lowers the quantity by one, removing the item instead of letting
// it reach zero.
func Decrement(s State, itemID string) State {
	i := s.index(itemID)
	if i < 0 {
		return s
	}
	if s.Cart.Items[i].Quantity <= 1 {
		return Remove(s, itemID)
	}
	next := s.clone()
	next.Cart.Items[i].Quantity--
	return next
}

func Clear(State) State {
	return State{}
}

// Sanitize repairs a state read from storage so it satisfies the cart
// invariants: unique ids, positive quantities, and a restaurant for any
// non-empty cart.
func Sanitize(s State) State {
	out := State{}
	for _, it := range s.Cart.Items {
		if it.ItemID == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			continue
		}
		if i := out.index(it.ItemID); i >= 0 {
			out.Cart.Items[i].Quantity += it.Quantity
			continue
		}
		out.Cart.Items = append(out.Cart.Items, it)
	}

	if out.Cart.IsEmpty() {
		return State{}
	}
	if s.Restaurant == nil || s.Restaurant.ID == "" {
		return State{}
	}
	if s.Cart.RestaurantID != "" && s.Cart.RestaurantID != s.Restaurant.ID {
		return State{}
	}

	r := *s.Restaurant
	out.Restaurant = &r
	out.Cart.RestaurantID = r.ID
	return out
}
