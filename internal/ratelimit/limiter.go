package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Budget is a sliding-window request budget: at most MaxRequests grants
// within any window of the given duration.
type Budget struct {
	MaxRequests int
	Window      time.Duration
}

// unlimited reports whether the budget imposes no limit.
func (b Budget) unlimited() bool {
	return b.MaxRequests <= 0 || b.Window <= 0
}

// Limiter tracks a rolling grant window per resource key. Keys without a
// configured budget are unlimited. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter creates a Limiter with no budgets configured.
func NewLimiter() *Limiter {
	return &Limiter{windows: make(map[string]*window)}
}

// SetBudget configures (or replaces) the budget for a resource key. A zero
// MaxRequests or Window makes the key unlimited. Waiters blocked on the key
// are re-evaluated against the new budget as slots free up.
func (l *Limiter) SetBudget(key string, b Budget) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.windows[key]; ok {
		w.mu.Lock()
		w.budget = b
		w.mu.Unlock()
		return
	}
	l.windows[key] = &window{budget: b}
}

// Acquire blocks until a slot is available for key, records the grant, and
// returns nil. It returns the context error if ctx is cancelled while
// waiting. Callers contending for the same key are granted in arrival order.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.windowFor(key).acquire(ctx)
}

// GrantsInWindow returns the number of grants currently inside the key's
// window. Unconfigured keys report 0.
func (l *Limiter) GrantsInWindow(key string) int {
	l.mu.Lock()
	w, ok := l.windows[key]
	l.mu.Unlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(time.Now())
	return len(w.grants)
}

// windowFor returns the window for key, creating an unlimited one if the key
// has no configured budget.
func (l *Limiter) windowFor(key string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	return w
}

// waiter is one blocked Acquire call.
type waiter struct {
	ready     chan struct{}
	cancelled bool
}

// window is the shared critical section for one resource key.
type window struct {
	mu          sync.Mutex
	budget      Budget
	grants      []time.Time // grant timestamps inside the window, oldest first
	queue       []*waiter   // FIFO
	dispatching bool
}

func (w *window) acquire(ctx context.Context) error {
	w.mu.Lock()

	now := time.Now()
	w.prune(now)

	// Fast path: no queue ahead of us and a slot is free.
	if w.budget.unlimited() {
		w.mu.Unlock()
		return nil
	}
	if len(w.queue) == 0 && len(w.grants) < w.budget.MaxRequests {
		w.grants = append(w.grants, now)
		w.mu.Unlock()
		return nil
	}

	wt := &waiter{ready: make(chan struct{})}
	w.queue = append(w.queue, wt)
	if !w.dispatching {
		w.dispatching = true
		go w.dispatch()
	}
	w.mu.Unlock()

	select {
	case <-wt.ready:
		return nil
	case <-ctx.Done():
		w.mu.Lock()
		defer w.mu.Unlock()
		select {
		case <-wt.ready:
			// The grant raced with cancellation. It stays recorded; the
			// window self-heals once the grant ages out.
			return ctx.Err()
		default:
			wt.cancelled = true
			return ctx.Err()
		}
	}
}

// dispatch serves the FIFO queue, sleeping until the oldest grant ages out
// whenever the window is full. It exits when the queue drains.
func (w *window) dispatch() {
	for {
		w.mu.Lock()
		now := time.Now()
		w.prune(now)

		for len(w.queue) > 0 && w.queue[0].cancelled {
			w.queue = w.queue[1:]
		}
		if len(w.queue) == 0 {
			w.dispatching = false
			w.mu.Unlock()
			return
		}

		if w.budget.unlimited() || len(w.grants) < w.budget.MaxRequests {
			wt := w.queue[0]
			w.queue = w.queue[1:]
			if !w.budget.unlimited() {
				w.grants = append(w.grants, now)
			}
			close(wt.ready)
			w.mu.Unlock()
			continue
		}

		wake := w.grants[0].Add(w.budget.Window).Sub(now)
		w.mu.Unlock()

		if wake < time.Millisecond {
			wake = time.Millisecond
		}
		time.Sleep(wake)
	}
}

// prune drops grants that have aged out of the window. Caller holds w.mu.
func (w *window) prune(now time.Time) {
	if w.budget.unlimited() {
		w.grants = nil
		return
	}
	cutoff := now.Add(-w.budget.Window)
	i := 0
	for i < len(w.grants) && !w.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.grants = append(w.grants[:0], w.grants[i:]...)
	}
}
