package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ChangeFunc receives the committed items of a cart after each mutation.
type ChangeFunc func(cartID uuid.UUID, items []LineItem)

// Registry hands out one Store per cart session. Concurrent first access
// to the same cart shares a single snapshot load. Stores left unused for
// longer than the idle timeout are dropped by Sweep; their state stays in
// the repository and is reloaded on the next Get.
type Registry struct {
	repo        Repository
	log         *zap.Logger
	onChange    ChangeFunc
	idleTimeout time.Duration
	now         func() time.Time

	mu     sync.Mutex
	stores map[uuid.UUID]*registered
	group  singleflight.Group
}

type registered struct {
	store    *Store
	lastUsed time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTimeout sets how long a store may go unused before Sweep drops
// it. Zero keeps stores for the life of the registry.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTimeout = d }
}

// NewRegistry creates a registry backed by repo. onChange may be nil.
func NewRegistry(repo Repository, log *zap.Logger, onChange ChangeFunc, opts ...RegistryOption) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		repo:     repo,
		log:      log,
		onChange: onChange,
		now:      time.Now,
		stores:   make(map[uuid.UUID]*registered),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the store for cartID, opening and registering it on first
// use. Use it for anything that may mutate the cart.
func (r *Registry) Get(ctx context.Context, cartID uuid.UUID) (*Store, error) {
	if s := r.lookup(cartID); s != nil {
		return s, nil
	}

	v, err, _ := r.group.Do(cartID.String(), func() (any, error) {
		if s := r.lookup(cartID); s != nil {
			return s, nil
		}
		opts := []Option{WithLogger(r.logFor(cartID))}
		if r.onChange != nil {
			notify := r.onChange
			opts = append(opts, WithObserver(func(items []LineItem) { notify(cartID, items) }))
		}
		s, err := Open(ctx, r.repo, Key(cartID), opts...)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.stores[cartID] = &registered{store: s, lastUsed: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Peek returns the registered store for cartID, or else a detached store
// loaded from the repository that is not registered. A detached store is
// for reading only; sessions that never mutate their cart cost nothing
// beyond the request.
func (r *Registry) Peek(ctx context.Context, cartID uuid.UUID) (*Store, error) {
	if s := r.lookup(cartID); s != nil {
		return s, nil
	}
	return Open(ctx, r.repo, Key(cartID), WithLogger(r.logFor(cartID)))
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep drops stores unused for longer than the idle timeout and returns
// how many were dropped.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.stores {
		if e.lastUsed.Before(cutoff) {
			delete(r.stores, id)
			n++
		}
	}
	return n
}

// RunEviction calls Sweep every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, interval time.Duration) {
	if r.idleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("evicted idle carts", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}

func (r *Registry) lookup(cartID uuid.UUID) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stores[cartID]
	if !ok {
		return nil
	}
	e.lastUsed = r.now()
	return e.store
}

func (r *Registry) logFor(cartID uuid.UUID) *zap.Logger {
	return r.log.With(zap.String("cart_id", cartID.String()))
}
