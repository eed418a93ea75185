package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AsyncSaver writes the latest state on a background goroutine. Saves never
// block the caller, and intermediate states are skipped when writes lag.
type AsyncSaver struct {
	storage Storage
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending *State
	writing bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewAsyncSaver(storage Storage, logger *slog.Logger) *AsyncSaver {
	a := &AsyncSaver{
		storage: storage,
		logger:  logger,
		timeout: 5 * time.Second,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncSaver) Save(st State) {
	a.mu.Lock()
	a.pending = &st
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every state handed to Save has been written or ctx ends.
func (a *AsyncSaver) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		a.mu.Lock()
		idle := a.pending == nil && !a.writing
		a.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close writes any pending state and stops the background goroutine.
func (a *AsyncSaver) Close(ctx context.Context) error {
	a.once.Do(func() { close(a.stop) })

	select {
	case <-a.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncSaver) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.wake:
			a.drain()
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *AsyncSaver) drain() {
	for {
		a.mu.Lock()
		st := a.pending
		a.pending = nil
		a.writing = st != nil
		a.mu.Unlock()

		if st == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.storage.Save(ctx, *st); err != nil {
			a.logger.Error("failed to persist cart", "error", err, "items", len(st.Cart.Items))
		}
		cancel()
	}
}
