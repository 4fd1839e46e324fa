// Package shop keeps per-owner cart and favorites state in Badger and
// publishes every change to the owner's subscribers.
package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	cartPrefix     = "cart:"
	favoritePrefix = "fav:"

	subscriberBuffer = 16
)

var (
	ErrMissingOwner   = errors.New("owner is required")
	ErrMissingProduct = errors.New("product id is required")
	ErrClosed         = errors.New("shop store closed")
)

// Item is one cart line.
type Item struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	ImageURL  *string `json:"image_url,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Cart is a snapshot of an owner's cart.
type Cart struct {
	Owner    string  `json:"owner"`
	Items    []Item  `json:"items"`
	Open     bool    `json:"open"`
	Count    int     `json:"count"`
	Subtotal float64 `json:"subtotal"`
}

func newCart(owner string, items []Item, open bool) Cart {
	c := Cart{Owner: owner, Items: items, Open: open}
	if c.Items == nil {
		c.Items = []Item{}
	}
	for _, it := range c.Items {
		c.Count += it.Quantity
		c.Subtotal += it.Price * float64(it.Quantity)
	}
	return c
}

// EventKind names what changed.
type EventKind string

const (
	EventCart      EventKind = "cart"
	EventCartOpen  EventKind = "cart-open"
	EventFavorites EventKind = "favorites"
)

// Event is delivered to subscribers after a change is stored.
type Event struct {
	Kind      EventKind `json:"kind"`
	Owner     string    `json:"owner"`
	Cart      *Cart     `json:"cart,omitempty"`
	Favorites []string  `json:"favorites,omitempty"`
}

// Store persists carts and favorites. Cart open state is kept in memory
// only.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// writeMu orders writes so events reach subscribers in commit order.
	writeMu sync.Mutex

	mu     sync.Mutex
	open   map[string]bool
	subs   map[string]map[int]chan Event
	nextID int
	closed bool
}

// Open opens the Badger database in dir, or an in-memory one when inMemory
// is set.
func Open(dir string, inMemory bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts.SyncWrites = true
		opts.CompactL0OnClose = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open shop db: %w", err)
	}
	logger.Info("shop store opened", slog.String("dir", dir), slog.Bool("in_memory", inMemory))

	return &Store{
		db:     db,
		logger: logger,
		open:   make(map[string]bool),
		subs:   make(map[string]map[int]chan Event),
	}, nil
}

// Close ends every subscription and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for owner, subs := range s.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(s.subs, owner)
	}
	s.mu.Unlock()

	return s.db.Close()
}

// Subscribe registers for the owner's events. The returned func cancels the
// subscription and closes the channel. Slow subscribers miss events rather
// than block writers.
func (s *Store) Subscribe(owner string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	if s.subs[owner] == nil {
		s.subs[owner] = make(map[int]chan Event)
	}
	s.subs[owner][id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subs[owner]; ok {
				if c, ok := subs[id]; ok {
					close(c)
					delete(subs, id)
				}
				if len(subs) == 0 {
					delete(s.subs, owner)
				}
			}
		})
	}
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[ev.Owner] {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("dropping shop event for slow subscriber",
				slog.String("owner", ev.Owner),
				slog.String("kind", string(ev.Kind)),
			)
		}
	}
}

func (s *Store) isOpen(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[owner]
}

// Cart returns the owner's cart.
func (s *Store) Cart(ctx context.Context, owner string) (Cart, error) {
	if err := checkOwner(ctx, owner); err != nil {
		return Cart{}, err
	}
	var items []Item
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		items, err = readJSON[[]Item](txn, cartPrefix+owner)
		return err
	})
	if err != nil {
		return Cart{}, fmt.Errorf("read cart: %w", err)
	}
	return newCart(owner, items, s.isOpen(owner)), nil
}

// AddToCart adds item, merging quantities when the product is already in
// the cart. A quantity below 1 adds one.
func (s *Store) AddToCart(ctx context.Context, owner string, item Item) (Cart, error) {
	if item.ProductID == "" {
		return Cart{}, ErrMissingProduct
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return s.updateCart(ctx, owner, func(items []Item) []Item {
		for i := range items {
			if items[i].ProductID == item.ProductID {
				items[i].Quantity += item.Quantity
				return items
			}
		}
		return append(items, item)
	})
}

// RemoveFromCart drops the product's line.
func (s *Store) RemoveFromCart(ctx context.Context, owner, productID string) (Cart, error) {
	return s.updateCart(ctx, owner, func(items []Item) []Item {
		return slices.DeleteFunc(items, func(it Item) bool { return it.ProductID == productID })
	})
}

// UpdateQuantity sets the product's quantity. Quantities below 1 are
// ignored and the cart is returned unchanged.
func (s *Store) UpdateQuantity(ctx context.Context, owner, productID string, quantity int) (Cart, error) {
	if quantity < 1 {
		return s.Cart(ctx, owner)
	}
	return s.updateCart(ctx, owner, func(items []Item) []Item {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context, owner string) (Cart, error) {
	return s.updateCart(ctx, owner, func([]Item) []Item { return nil })
}

// SetCartOpen records whether the owner's cart drawer is open.
func (s *Store) SetCartOpen(ctx context.Context, owner string, open bool) (Cart, error) {
	if err := checkOwner(ctx, owner); err != nil {
		return Cart{}, err
	}
	s.mu.Lock()
	if open {
		s.open[owner] = true
	} else {
		delete(s.open, owner)
	}
	s.mu.Unlock()

	cart, err := s.Cart(ctx, owner)
	if err != nil {
		return Cart{}, err
	}
	s.publish(Event{Kind: EventCartOpen, Owner: owner, Cart: &cart})
	return cart, nil
}

func (s *Store) updateCart(ctx context.Context, owner string, mutate func([]Item) []Item) (Cart, error) {
	if err := checkOwner(ctx, owner); err != nil {
		return Cart{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var items []Item
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readJSON[[]Item](txn, cartPrefix+owner)
		if err != nil {
			return err
		}
		items = mutate(current)
		if len(items) == 0 {
			items = nil
			return txn.Delete([]byte(cartPrefix + owner))
		}
		return writeJSON(txn, cartPrefix+owner, items)
	})
	if err != nil {
		return Cart{}, fmt.Errorf("update cart: %w", err)
	}

	cart := newCart(owner, items, s.isOpen(owner))
	s.publish(Event{Kind: EventCart, Owner: owner, Cart: &cart})
	return cart, nil
}

// Favorites returns the owner's favorite product ids in the order they
// were added.
func (s *Store) Favorites(ctx context.Context, owner string) ([]string, error) {
	if err := checkOwner(ctx, owner); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ids, err = readJSON[[]string](txn, favoritePrefix+owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read favorites: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ToggleFavorite adds or removes productID and reports whether it is now a
// favorite.
func (s *Store) ToggleFavorite(ctx context.Context, owner, productID string) ([]string, bool, error) {
	if err := checkOwner(ctx, owner); err != nil {
		return nil, false, err
	}
	if productID == "" {
		return nil, false, ErrMissingProduct
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var (
		ids      []string
		favorite bool
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readJSON[[]string](txn, favoritePrefix+owner)
		if err != nil {
			return err
		}
		if i := slices.Index(current, productID); i >= 0 {
			ids = slices.Delete(current, i, i+1)
		} else {
			ids = append(current, productID)
			favorite = true
		}
		return writeJSON(txn, favoritePrefix+owner, ids)
	})
	if err != nil {
		return nil, false, fmt.Errorf("toggle favorite: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}
	s.publish(Event{Kind: EventFavorites, Owner: owner, Favorites: slices.Clone(ids)})
	return ids, favorite, nil
}

func checkOwner(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(owner) == "" {
		return ErrMissingOwner
	}
	return nil
}

// readJSON decodes the value at key, returning the zero value when the key
// does not exist.
func readJSON[T any](txn *badger.Txn, key string) (T, error) {
	var out T
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	})
	return out, err
}

func writeJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}
