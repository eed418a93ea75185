package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joao-fontenele/foodflow/internal/async"
	"github.com/joao-fontenele/foodflow/internal/cart"
	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/courier"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/pricing"
	"github.com/joao-fontenele/foodflow/internal/restaurant"
)

func (a *app) progress() io.Writer {
	return os.Stderr
}

// await shows a spinner on w while op is pending and returns its outcome.
func await[T any](ctx context.Context, w io.Writer, label string, op *async.Op[T]) (T, error) {
	const frames = `|/-\`
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()

	drew := false
	for i := 0; op.State() == async.Pending; i++ {
		select {
		case <-ticker.C:
			fmt.Fprintf(w, "\r%s %c", label, frames[i%len(frames)])
			drew = true
			continue
		case <-op.Done():
		case <-ctx.Done():
		}
		break
	}
	if drew {
		fmt.Fprint(w, "\r\033[K")
	}
	return op.Wait(ctx)
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	var (
		ve *lifecycle.ValidationError
		pe *lifecycle.PaymentError
		sp *courier.SyncPendingError
		ce *client.ConflictError
		te *domain.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		return "Please fix the following:\n  - " + strings.Join(ve.Problems, "\n  - ")
	case errors.Is(err, cart.ErrDifferentRestaurant):
		return "Your cart holds items from another restaurant. Run `storefront cart clear` first."
	case errors.As(err, &pe):
		return fmt.Sprintf("Order %s was placed but the payment failed (%v). Your cart was kept.", pe.OrderID, pe.Err)
	case errors.Is(err, lifecycle.ErrOrderCreation) && client.IsTransient(err):
		return "The order service is unavailable right now. Nothing was charged; please try again."
	case errors.Is(err, lifecycle.ErrOrderCreation):
		return "Could not place the order: " + err.Error()
	case errors.As(err, &sp):
		return fmt.Sprintf("The delivery was updated but order %s has not caught up yet. Run `storefront courier reconcile %s`.",
			sp.OrderID, sp.DeliveryID)
	case errors.As(err, &ce):
		if ce.Order != nil {
			return fmt.Sprintf("The order changed in the meantime; it is now %s.", ce.Order.Status)
		}
		if ce.Delivery != nil {
			return fmt.Sprintf("The delivery changed in the meantime; it is now %s.", ce.Delivery.Status)
		}
		return "Someone else changed this first: " + ce.Message
	case errors.As(err, &te):
		return fmt.Sprintf("An order that is %s cannot move to %s.", te.From, te.To)
	case errors.Is(err, courier.ErrNoActiveDelivery):
		return "You have no active delivery."
	case errors.Is(err, courier.ErrAlreadyActive):
		return "Finish your active delivery before accepting another."
	case errors.Is(err, courier.ErrNoAction):
		return "There is nothing left to do for this delivery."
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	case client.IsTransient(err):
		return "The service is unavailable right now; please try again."
	}
	return "Error: " + err.Error()
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) printMenu() {
	tw := a.table()
	for _, entry := range a.menu {
		fee := pricing.DefaultDeliveryFee
		if entry.DeliveryFee != nil {
			fee = *entry.DeliveryFee
		}
		fmt.Fprintf(tw, "%s\t%s\tdelivery %s\n", entry.ID, entry.Name, fee.StringFixed(2))
		for _, item := range entry.Items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", item.ID, item.Name, item.UnitPrice.StringFixed(2))
		}
	}
	_ = tw.Flush()
}

func (a *app) printCart() {
	c := a.store.Cart()
	if c.IsEmpty() {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return
	}

	if r := a.store.Restaurant(); r != nil {
		fmt.Fprintf(a.out, "%s (%d items)\n", r.Name, c.ItemCount())
	}
	tw := a.table()
	for _, item := range c.Items {
		fmt.Fprintf(tw, "  %s\t%s\tx%d\t%s\n", item.ItemID, item.Name, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	b := a.store.Price()
	fmt.Fprintf(tw, "\tSubtotal\t\t%s\n", b.Subtotal.StringFixed(2))
	fmt.Fprintf(tw, "\tDelivery\t\t%s\n", b.DeliveryFee.StringFixed(2))
	fmt.Fprintf(tw, "\tTax\t\t%s\n", b.Tax.StringFixed(2))
	fmt.Fprintf(tw, "\tTotal\t\t%s\n", b.Total.StringFixed(2))
	_ = tw.Flush()
}

func (a *app) printOrder(o domain.Order) {
	tw := a.table()
	fmt.Fprintf(tw, "Order\t%s\n", o.ID)
	fmt.Fprintf(tw, "Status\t%s\n", o.Status)
	fmt.Fprintf(tw, "Total\t%s (%s, paid: %t)\n", o.TotalAmount.StringFixed(2), o.PaymentMethod, o.IsPaid)
	fmt.Fprintf(tw, "Deliver to\t%s\n", o.DeliveryAddress)
	for _, item := range o.Items {
		fmt.Fprintf(tw, "  %s\tx%d\t%s\n", item.Name, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	_ = tw.Flush()
}

func (a *app) printQueue(orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(a.out, "No orders.")
		return
	}
	tw := a.table()
	fmt.Fprintln(tw, "ID\tSTATUS\tCUSTOMER\tTOTAL\tPLACED\tNEXT")
	for _, o := range orders {
		var next []string
		for _, opt := range restaurant.NextStatusOptions(o.Status) {
			next = append(next, fmt.Sprintf("%s (%s)", opt.Label, opt.Status))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.Status, o.CustomerName,
			o.TotalAmount.StringFixed(2), o.CreatedAt.Local().Format(time.Kitchen), strings.Join(next, ", "))
	}
	_ = tw.Flush()
}

func (a *app) printStats(s restaurant.Stats) {
	tw := a.table()
	fmt.Fprintf(tw, "Orders\t%d\n", s.Total)
	for _, status := range domain.OrderStatuses() {
		fmt.Fprintf(tw, "  %s\t%d\n", status, s.ByStatus[status])
	}
	fmt.Fprintf(tw, "Revenue\t%s\n", s.Revenue.StringFixed(2))
	_ = tw.Flush()
}

func (a *app) printDeliveries(deliveries []domain.Delivery) {
	if len(deliveries) == 0 {
		fmt.Fprintln(a.out, "No deliveries waiting.")
		return
	}
	tw := a.table()
	fmt.Fprintln(tw, "ID\tORDER\tRESTAURANT\tADDRESS")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.OrderID, d.RestaurantID, d.DeliveryAddress)
	}
	_ = tw.Flush()
}

func (a *app) printDelivery(d domain.Delivery) {
	tw := a.table()
	fmt.Fprintf(tw, "Delivery\t%s\n", d.ID)
	fmt.Fprintf(tw, "Order\t%s\n", d.OrderID)
	fmt.Fprintf(tw, "Status\t%s\n", d.Status)
	fmt.Fprintf(tw, "Deliver to\t%s (%s %s)\n", d.DeliveryAddress, d.CustomerName, d.CustomerPhone)
	if action, ok := domain.NextDeliveryAction(d.Status); ok {
		fmt.Fprintf(tw, "Next\t%s (storefront courier next)\n", action.Label)
	}
	_ = tw.Flush()
}
