// Package cart holds the in-progress, single-restaurant cart. The Store owns
// the state and applies the pure reducers from state.go; persistence is a
// side effect handed to a Saver after each mutation.
package cart

import (
	"sync"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/pricing"
)

type Saver interface {
	Save(State)
}

type Store struct {
	mu    sync.Mutex
	state State
	saver Saver
}

// NewStore creates a store seeded with initial. saver may be nil.
func NewStore(initial State, saver Saver) *Store {
	return &Store{state: Sanitize(initial), saver: saver}
}

func (s *Store) AddItem(restaurant domain.Restaurant, item domain.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Add(s.state, restaurant, item)
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

func (s *Store) RemoveItem(itemID string) {
	s.apply(func(st State) State { return Remove(st, itemID) })
}

func (s *Store) IncrementQuantity(itemID string) {
	s.apply(func(st State) State { return Increment(st, itemID) })
}

func (s *Store) DecrementQuantity(itemID string) {
	s.apply(func(st State) State { return Decrement(st, itemID) })
}

func (s *Store) Clear() {
	s.apply(Clear)
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Cart() domain.Cart {
	return s.State().Cart
}

func (s *Store) Restaurant() *domain.Restaurant {
	return s.State().Restaurant
}

// Price recomputes the breakdown from the current contents.
func (s *Store) Price() pricing.Breakdown {
	st := s.State()
	return pricing.Price(st.Cart, st.Restaurant)
}

func (s *Store) apply(reduce func(State) State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(reduce(s.state))
}

func (s *Store) commit(next State) {
	s.state = next
	if s.saver != nil {
		s.saver.Save(next.clone())
	}
}
