package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// TransitionError is returned when a status change is not an edge of the
// lifecycle graph, or the actor may not perform it.
type TransitionError struct {
	From  string
	To    string
	Actor Actor
}

func (e *TransitionError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("%s may not move %s to %s", e.Actor, e.From, e.To)
	}
	return fmt.Sprintf("illegal transition %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrConflict
}
