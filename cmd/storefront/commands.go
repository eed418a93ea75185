package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/joao-fontenele/foodflow/internal/async"
	"github.com/joao-fontenele/foodflow/internal/courier"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/restaurant"
)

func (a *app) runCart(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch action, rest := args[0], args[1:]; {
	case action == "add" && len(rest) == 2:
		r, item, err := a.menu.lookup(rest[0], rest[1])
		if err != nil {
			return err
		}
		if err := a.store.AddItem(r, item); err != nil {
			return err
		}
	case action == "remove" && len(rest) == 1:
		a.store.RemoveItem(rest[0])
	case action == "inc" && len(rest) == 1:
		a.store.IncrementQuantity(rest[0])
	case action == "dec" && len(rest) == 1:
		a.store.DecrementQuantity(rest[0])
	case action == "clear" && len(rest) == 0:
		a.store.Clear()
	case action == "show" && len(rest) == 0:
	default:
		return errUsage
	}

	a.printCart()
	return nil
}

func (a *app) runCheckout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	name := fs.String("name", "", "customer name")
	phone := fs.String("phone", "", "customer phone")
	address := fs.String("address", "", "delivery address")
	notes := fs.String("notes", "", "special instructions")
	payment := fs.String("payment", string(domain.PaymentMethodCard), "card or cash")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	checkout := lifecycle.Checkout{
		Customer:            domain.Customer{ID: a.cfg.CustomerID, Name: *name, Phone: *phone},
		DeliveryAddress:     *address,
		SpecialInstructions: *notes,
		PaymentMethod:       domain.PaymentMethod(strings.ToLower(*payment)),
	}

	op := async.Run(ctx, func(ctx context.Context) (*domain.Order, error) {
		return a.manager.Submit(ctx, checkout)
	})
	order, err := await(ctx, a.progress(), "Placing order", op)
	if err != nil {
		var pe *lifecycle.PaymentError
		if errors.As(err, &pe) && order != nil {
			a.printOrder(*order)
		}
		return err
	}

	fmt.Fprintln(a.out, "Order placed.")
	a.printOrder(*order)
	return nil
}

func (a *app) runTrack(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	order, err := await(ctx, a.progress(), "Loading order", async.Run(ctx, func(ctx context.Context) (*domain.Order, error) {
		return a.manager.Track(ctx, args[0])
	}))
	if err != nil {
		return err
	}
	a.printOrder(*order)
	return nil
}

func (a *app) runOrders(ctx context.Context, args []string) error {
	if len(args) != 2 || args[0] != "cancel" {
		return errUsage
	}
	order, err := a.manager.Track(ctx, args[1])
	if err != nil {
		return err
	}
	cancelled, err := a.manager.Cancel(ctx, *order)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Order cancelled.")
	a.printOrder(*cancelled)
	return nil
}

func (a *app) runRestaurant(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	fs := flag.NewFlagSet("restaurant "+args[0], flag.ContinueOnError)
	restaurantID := fs.String("restaurant", a.cfg.RestaurantID, "restaurant id")
	status := fs.String("status", "", "only orders in this status")
	search := fs.String("search", "", "match id, customer or item names")
	sortBy := fs.String("sort", string(restaurant.SortByCreatedAt), "created_at, total, customer or id")
	asc := fs.Bool("asc", false, "ascending order")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}
	if *restaurantID == "" {
		return fmt.Errorf("%w: set -restaurant or STOREFRONT_RESTAURANT_ID", domain.ErrValidation)
	}

	query := restaurant.Query{Search: *search, SortBy: restaurant.SortField(*sortBy), Ascending: *asc}
	if *status != "" {
		if err := query.Status.UnmarshalText([]byte(strings.ToUpper(*status))); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
	}

	switch args[0] {
	case "list":
		orders, err := await(ctx, a.progress(), "Loading orders", async.Run(ctx, func(ctx context.Context) ([]domain.Order, error) {
			return a.queue.List(ctx, *restaurantID, query)
		}))
		if err != nil {
			return err
		}
		a.printQueue(orders)
	case "stats":
		orders, err := a.queue.List(ctx, *restaurantID, restaurant.Query{})
		if err != nil {
			return err
		}
		a.printStats(restaurant.Summarize(orders))
	case "advance":
		rest := fs.Args()
		if len(rest) != 2 {
			return errUsage
		}
		var to domain.OrderStatus
		if err := to.UnmarshalText([]byte(strings.ToUpper(rest[1]))); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		order, err := a.manager.Track(ctx, rest[0])
		if err != nil {
			return err
		}
		updated, err := a.queue.Advance(ctx, *order, to)
		if err != nil {
			return err
		}
		a.printOrder(*updated)
	default:
		return errUsage
	}
	return nil
}

func (a *app) runCourier(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if a.cfg.DriverID == "" {
		return fmt.Errorf("%w: STOREFRONT_DRIVER_ID is required for courier commands", domain.ErrValidation)
	}

	switch action, rest := args[0], args[1:]; {
	case action == "available" && len(rest) == 0:
		deliveries, err := a.tracker.Available(ctx)
		if err != nil {
			return err
		}
		a.printDeliveries(deliveries)
	case action == "accept" && len(rest) == 1:
		d, err := a.tracker.Accept(ctx, rest[0])
		if err != nil {
			return err
		}
		a.printDelivery(*d)
	case action == "active" && len(rest) == 0:
		d, err := a.tracker.Active(ctx)
		if err != nil {
			return err
		}
		a.printDelivery(*d)
	case action == "next" && len(rest) == 0:
		d, err := a.tracker.Active(ctx)
		if err != nil {
			return err
		}
		res, err := await(ctx, a.progress(), "Updating delivery", async.Run(ctx, func(ctx context.Context) (*courier.Result, error) {
			return a.tracker.Advance(ctx, *d)
		}))
		if res != nil && res.Delivery != nil {
			a.printDelivery(*res.Delivery)
		}
		return err
	case action == "abort" && len(rest) == 0:
		d, err := a.tracker.Active(ctx)
		if err != nil {
			return err
		}
		h, err := a.tracker.Abort(ctx, *d)
		if err != nil {
			return err
		}
		a.printDelivery(*h.Cancelled)
		if h.Reopened != nil {
			fmt.Fprintf(a.out, "Order %s is back in the pool as delivery %s.\n", h.Reopened.OrderID, h.Reopened.ID)
		}
	case action == "reconcile" && len(rest) == 1:
		rec, err := a.tracker.Reconcile(ctx, rest[0])
		if err != nil {
			return err
		}
		if rec.Repaired {
			fmt.Fprintf(a.out, "Order %s moved to %s.\n", rec.Order.ID, rec.Order.Status)
		} else {
			fmt.Fprintln(a.out, "Delivery and order already agree.")
		}
	default:
		return errUsage
	}
	return nil
}
