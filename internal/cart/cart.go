package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

// NoticeTTL is how long transient cart notices stay visible before the UI
// layer dismisses them.
const NoticeTTL = 2 * time.Second

// Item is one unit of a product in the underlying ungrouped cart list.
type Item struct {
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// LineItem is the grouped view of the cart: one entry per product name.
type LineItem struct {
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Notice is a transient user-facing message emitted by cart mutations.
type Notice struct {
	Message string
	TTL     time.Duration
}

// NoticeSink receives cart notices. A nil sink silently drops them.
type NoticeSink func(Notice)

// Store holds the in-progress order. The in-memory list is authoritative; the
// injected Storage mirror exists only so a reload can reconstruct it, and its
// failures never surface to the caller.
type Store struct {
	mu      sync.Mutex
	items   []Item
	storage Storage
	notices NoticeSink
	logg    *logger.Logger
}

// NewStore creates an empty cart backed by the given durable mirror. Both
// storage and notices may be nil.
func NewStore(storage Storage, notices NoticeSink, logg *logger.Logger) *Store {
	return &Store{storage: storage, notices: notices, logg: logg}
}

// Restore loads previously persisted entries, surfacing a single welcome-back
// notice when any exist. Load failures leave the cart empty.
func (s *Store) Restore(ctx context.Context) {
	if s.storage == nil {
		return
	}
	items, err := s.storage.Load(ctx)
	if err != nil {
		s.logPersistence(ctx, "restore cart", err)
		return
	}
	if len(items) == 0 {
		return
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.notify(Notice{
		Message: fmt.Sprintf("Welcome back! You have %d item(s) in your cart.", len(items)),
		TTL:     NoticeTTL,
	})
}

// Add appends one unit of the named product. The grouped view folds repeated
// names into a single entry with an incremented quantity.
func (s *Store) Add(ctx context.Context, item Item) {
	s.mu.Lock()
	s.items = append(s.items, item)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notify(Notice{Message: fmt.Sprintf("%s added", item.Name), TTL: NoticeTTL})
}

// Remove drops exactly one unit at the given position in the ungrouped list.
// Out-of-range indices are a no-op.
func (s *Store) Remove(ctx context.Context, index int) {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
}

// Clear empties the cart and its persisted mirror.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	if s.storage == nil {
		return
	}
	if err := s.storage.Clear(ctx); err != nil {
		s.logPersistence(ctx, "clear cart", err)
	}
}

// Total recomputes the cart total in minor units. It is never cached.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, item := range s.items {
		total += item.UnitPriceCents
	}
	return total
}

// Len reports the number of units in the ungrouped list.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// IsEmpty reports whether the cart holds no items.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Items returns the grouped view, one LineItem per product name in first-add
// order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := make([]LineItem, 0, len(s.items))
	indexByName := map[string]int{}
	for _, item := range s.items {
		if i, ok := indexByName[item.Name]; ok {
			grouped[i].Quantity++
			continue
		}
		indexByName[item.Name] = len(grouped)
		grouped = append(grouped, LineItem{
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       1,
		})
	}
	return grouped
}

func (s *Store) snapshotLocked() []Item {
	snapshot := make([]Item, len(s.items))
	copy(snapshot, s.items)
	return snapshot
}

func (s *Store) persist(ctx context.Context, snapshot []Item) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Save(ctx, snapshot); err != nil {
		s.logPersistence(ctx, "persist cart", err)
	}
}

func (s *Store) logPersistence(ctx context.Context, op string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"op": op, "error": err.Error()}), "cart persistence degraded")
}

func (s *Store) notify(notice Notice) {
	if s.notices == nil {
		return
	}
	s.notices(notice)
}
