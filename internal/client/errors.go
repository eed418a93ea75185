package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// ErrTransient marks failures worth retrying unchanged: network errors, 5xx
// responses and an open circuit breaker.
var ErrTransient = errors.New("transient failure")

type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: service returned status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// ConflictError is a 409: the record was not in the state the request
// expected. Order or Delivery holds the server's current copy when it sent one.
type ConflictError struct {
	Op       string
	Message  string
	Order    *domain.Order
	Delivery *domain.Delivery

	raw json.RawMessage
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict: %s", e.Op, e.Message)
}

func (e *ConflictError) Is(target error) bool { return target == domain.ErrConflict }

// RequestError is any other 4xx. The request will not succeed if repeated.
type RequestError struct {
	Op      string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.Status, e.Message)
}

func (e *RequestError) Is(target error) bool { return target == domain.ErrValidation }

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
