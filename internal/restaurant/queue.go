// Package restaurant is the restaurant-side view of incoming orders.
package restaurant

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
)

type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByTotal     SortField = "total"
	SortByCustomer  SortField = "customer"
	SortByID        SortField = "id"
)

type Query struct {
	Status    domain.OrderStatus
	Search    string
	SortBy    SortField
	Ascending bool
}

type Option struct {
	Status domain.OrderStatus
	Label  string
}

var statusOptions = map[domain.OrderStatus][]Option{
	domain.OrderStatusPending: {
		{Status: domain.OrderStatusPreparing, Label: "Accept & Prepare"},
		{Status: domain.OrderStatusCancelled, Label: "Cancel Order"},
	},
	domain.OrderStatusPreparing: {
		{Status: domain.OrderStatusReadyForPickup, Label: "Ready for Pickup"},
	},
}

// NextStatusOptions lists the transitions the restaurant may apply to an
// order in status s.
func NextStatusOptions(s domain.OrderStatus) []Option {
	return slices.Clone(statusOptions[s])
}

type OrdersLister interface {
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

type Queue struct {
	orders    OrdersLister
	lifecycle *lifecycle.Manager
}

func NewQueue(orders OrdersLister, manager *lifecycle.Manager) *Queue {
	return &Queue{orders: orders, lifecycle: manager}
}

func (q *Queue) List(ctx context.Context, restaurantID string, query Query) ([]domain.Order, error) {
	orders, err := q.orders.ListOrders(ctx, domain.OrderFilter{RestaurantID: restaurantID})
	if err != nil {
		return nil, fmt.Errorf("list orders for restaurant %s: %w", restaurantID, err)
	}
	return Apply(orders, query), nil
}

// Advance applies one of the offered options through the guarded transition.
func (q *Queue) Advance(ctx context.Context, order domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	offered := slices.ContainsFunc(statusOptions[order.Status], func(o Option) bool { return o.Status == to })
	if !offered {
		return nil, &domain.TransitionError{From: string(order.Status), To: string(to), Actor: domain.ActorRestaurant}
	}
	return q.lifecycle.Transition(ctx, domain.ActorRestaurant, order, to)
}

// Apply filters, searches and sorts orders without modifying the input.
func Apply(orders []domain.Order, query Query) []domain.Order {
	needle := strings.ToLower(strings.TrimSpace(query.Search))

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if query.Status != "" && o.Status != query.Status {
			continue
		}
		if needle != "" && !matches(o, needle) {
			continue
		}
		out = append(out, o)
	}

	asc := query.Ascending
	by := query.SortBy
	if by == "" {
		by = SortByCreatedAt
	}

	slices.SortStableFunc(out, func(a, b domain.Order) int {
		var c int
		switch by {
		case SortByTotal:
			c = a.TotalAmount.Cmp(b.TotalAmount)
		case SortByCustomer:
			c = cmp.Compare(strings.ToLower(a.CustomerName), strings.ToLower(b.CustomerName))
		case SortByID:
			c = cmp.Compare(a.ID, b.ID)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if !asc {
			c = -c
		}
		return c
	})
	return out
}

func matches(o domain.Order, needle string) bool {
	if strings.Contains(strings.ToLower(o.ID), needle) ||
		strings.Contains(strings.ToLower(o.CustomerName), needle) ||
		strings.Contains(strings.ToLower(o.CustomerPhone), needle) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			return true
		}
	}
	return false
}

type Stats struct {
	Total    int
	ByStatus map[domain.OrderStatus]int
	Revenue  decimal.Decimal
}

// Summarize counts orders per status; revenue only includes delivered orders.
func Summarize(orders []domain.Order) Stats {
	s := Stats{ByStatus: map[domain.OrderStatus]int{}, Revenue: decimal.Zero}
	for _, o := range orders {
		s.Total++
		s.ByStatus[o.Status]++
		if o.Status == domain.OrderStatusDelivered {
			s.Revenue = s.Revenue.Add(o.TotalAmount)
		}
	}
	return s
}
