package embedding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Veraticus/family-budget/internal/common"
)

// State is the availability of a model behind a Handle.
type State int

// Handle states.
const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle is a shared reference to a value that is loaded once, possibly in the
// background. Callers query it per request and must handle every State.
type Handle[T any] struct {
	value   T
	err     error
	done    chan struct{}
	mu      sync.RWMutex
	state   State
	started bool
}

// NewHandle returns a handle in the Loading state.
func NewHandle[T any]() *Handle[T] {
	return &Handle[T]{
		state: StateLoading,
		done:  make(chan struct{}),
	}
}

// LoadAsync runs load on its own goroutine. Only the first Load or LoadAsync call has any effect.
func (h *Handle[T]) LoadAsync(ctx context.Context, load func(context.Context) (T, error)) {
	if !h.begin() {
		return
	}
	go func() {
		h.finish(load(ctx))
	}()
}

// Load runs load on the calling goroutine and returns its error.
func (h *Handle[T]) Load(ctx context.Context, load func(context.Context) (T, error)) error {
	if !h.begin() {
		_, err := h.Status()
		return err
	}
	v, err := load(ctx)
	h.finish(v, err)
	return err
}

func (h *Handle[T]) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		slog.Debug("Model load already started, ignoring")
		return false
	}
	h.started = true
	return true
}

func (h *Handle[T]) finish(v T, err error) {
	h.mu.Lock()
	if err != nil {
		h.state = StateFailed
		h.err = err
	} else {
		h.state = StateReady
		h.value = v
	}
	h.mu.Unlock()
	close(h.done)

	if err != nil {
		slog.Warn("Semantic model unavailable, continuing with rules only", "error", err)
		return
	}
	slog.Info("Semantic model ready")
}

// Status reports the current state and, when Failed, the load error.
func (h *Handle[T]) Status() (State, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, h.err
}

// Get returns the loaded value, or an error wrapping common.ErrModelNotReady.
func (h *Handle[T]) Get() (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var zero T
	switch h.state {
	case StateReady:
		return h.value, nil
	case StateFailed:
		return zero, fmt.Errorf("%w: %w", common.ErrModelNotReady, h.err)
	default:
		return zero, fmt.Errorf("%w: still loading", common.ErrModelNotReady)
	}
}

// Wait blocks until loading finishes or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.Get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close releases the loaded value if it implements io.Closer.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateReady {
		return nil
	}
	if c, ok := any(h.value).(io.Closer); ok {
		h.state = StateFailed
		h.err = ErrEngineClosed
		return c.Close()
	}
	return nil
}
