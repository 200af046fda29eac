// Package cart owns the pending order of a cart session: its line items,
// the derived totals, and the write-through persistence of every change.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oppa-kitchen/storefront/internal/menu"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrPersist wraps failures to write a snapshot. The in-memory state is
// unchanged when a mutation returns it.
var ErrPersist = errors.New("persist cart")

// Observer is called with the committed items after every mutation.
// It runs while the store's write lock is held, so calls arrive in commit
// order; it must not call back into the store's mutating methods.
type Observer func(items []LineItem)

// Store is the single source of truth for one cart. Mutations are
// serialized and each one is persisted before it becomes visible; reads
// never block on a mutation in flight.
type Store struct {
	key      string
	repo     Repository
	observer Observer
	log      *zap.Logger

	writeMu sync.Mutex
	items   atomic.Pointer[[]LineItem]
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers a callback for committed changes.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open loads the latest snapshot stored under key, or starts empty when
// there is none. An unreadable snapshot is discarded.
func Open(ctx context.Context, repo Repository, key string, opts ...Option) (*Store, error) {
	s := &Store{key: key, repo: repo, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	items := []LineItem{}
	data, err := repo.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNoSnapshot):
	case err != nil:
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	default:
		decoded, err := Decode(data)
		if err != nil {
			s.log.Warn("discarding unreadable cart snapshot", zap.String("key", key), zap.Error(err))
		} else {
			items = decoded
		}
	}
	s.items.Store(&items)
	return s, nil
}

// Key returns the storage key this store persists under.
func (s *Store) Key() string { return s.key }

// AddItem inserts item with quantity 1, or increments the quantity of the
// existing line item with the same id by exactly one. The stored copy's
// attributes are kept on increment.
func (s *Store) AddItem(ctx context.Context, item menu.Item) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := cloneItems(s.current())
	if i := indexOf(next, item.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, newLineItem(item))
	}
	return s.commit(ctx, next)
}

// RemoveItem deletes the line item with the given id. Unknown ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id menu.ID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.remove(ctx, id)
}

// UpdateQuantity sets the quantity of a line item. A quantity of zero or
// less removes the item; unknown ids are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id menu.ID, quantity int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if quantity <= 0 {
		return s.remove(ctx, id)
	}
	cur := s.current()
	i := indexOf(cur, id)
	if i < 0 {
		return nil
	}
	next := cloneItems(cur)
	next[i].Quantity = quantity
	return s.commit(ctx, next)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit(ctx, []LineItem{})
}

// Inspect calls fn with the committed items while holding the write lock,
// so no mutation commits, and no observer runs, until fn returns. fn must
// not call the store's mutating methods.
func (s *Store) Inspect(fn func(items []LineItem)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fn(cloneItems(s.current()))
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	return cloneItems(s.current())
}

// Total is the sum of price × quantity over all line items.
func (s *Store) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.current() {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ItemCount is the sum of quantities, not the number of distinct items.
func (s *Store) ItemCount() int {
	n := 0
	for _, it := range s.current() {
		n += it.Quantity
	}
	return n
}

// Len is the number of distinct line items.
func (s *Store) Len() int {
	return len(s.current())
}

func (s *Store) current() []LineItem {
	return *s.items.Load()
}

// remove requires writeMu.
func (s *Store) remove(ctx context.Context, id menu.ID) error {
	cur := s.current()
	i := indexOf(cur, id)
	if i < 0 {
		return nil
	}
	next := make([]LineItem, 0, len(cur)-1)
	next = append(next, cur[:i]...)
	next = append(next, cur[i+1:]...)
	return s.commit(ctx, next)
}

// commit requires writeMu. The snapshot is written before the new state
// is published.
func (s *Store) commit(ctx context.Context, next []LineItem) error {
	data, err := Encode(next)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.repo.Save(ctx, s.key, data); err != nil {
		s.log.Error("persist cart snapshot", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.items.Store(&next)
	if s.observer != nil {
		s.observer(cloneItems(next))
	}
	return nil
}
