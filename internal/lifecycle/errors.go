package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var (
	ErrOrderCreation = errors.New("order creation failed")
	ErrPaymentFailed = errors.New("payment processing failed")
)

// ValidationError lists every problem found before any network call.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid checkout: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == domain.ErrValidation }

// PaymentError is returned together with the created order when the payment
// step fails. The order stays PENDING and the cart is kept.
type PaymentError struct {
	OrderID string
	Err     error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("order %s was placed but payment failed: %v", e.OrderID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

func (e *PaymentError) Is(target error) bool { return target == ErrPaymentFailed }
