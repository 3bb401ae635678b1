package cart

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"finitefield.org/manga-web/internal/catalog"
)

// Mutation operation names, used as metric labels.
const (
	OpAdd    = "add"
	OpSetQty = "set_qty"
	OpRemove = "remove"
	OpClear  = "clear"
	opLoad   = "load"
)

// ProductLookup resolves product snapshots for new lines. *catalog.Catalog
// implements it, including a nil catalog.
type ProductLookup interface {
	Lookup(id string) (catalog.Product, bool)
}

// Listener is notified after every mutation of the store it was registered on
// or any store derived from it with For.
type Listener func(ctx context.Context, lines Lines)

type listenerSet struct {
	mu  sync.RWMutex
	fns []Listener
}

func (s *listenerSet) add(fn Listener) {
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

func (s *listenerSet) notify(ctx context.Context, lines Lines) {
	s.mu.RLock()
	fns := append([]Listener(nil), s.fns...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, lines.Clone())
	}
}

// Store reads and mutates the cart held under one backend key. Every
// mutation is a synchronous read-modify-write; concurrent writers to the
// same key are not serialized and the last write wins.
type Store struct {
	backend   Backend
	key       string
	products  ProductLookup
	logger    *zap.Logger
	metrics   *Metrics
	listeners *listenerSet
}

// Option configures a Store.
type Option func(*Store)

// WithProducts sets the catalog used to snapshot new lines.
func WithProducts(p ProductLookup) Option { return func(s *Store) { s.products = p } }

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option { return func(s *Store) { s.metrics = m } }

// NewStore binds a store to key on backend.
func NewStore(backend Backend, key string, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		key:       key,
		logger:    zap.NewNop(),
		listeners: &listenerSet{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// For returns a store for another key sharing backend, catalog, logger,
// metrics and listeners.
func (s *Store) For(key string) *Store {
	cp := *s
	cp.key = key
	return &cp
}

// Key is the backend key this store is bound to.
func (s *Store) Key() string { return s.key }

// Backend exposes the underlying backend for subscribers.
func (s *Store) Backend() Backend { return s.backend }

// OnChange registers fn. Listeners run synchronously in registration order.
func (s *Store) OnChange(fn Listener) {
	if fn != nil {
		s.listeners.add(fn)
	}
}

// Load returns the persisted cart. It never fails: a missing, unreadable or
// corrupt value reads as an empty cart.
func (s *Store) Load(ctx context.Context) Lines {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return Lines{}
	}
	if err != nil {
		s.metrics.storageError(opLoad)
		s.logger.Error("cart read failed", zap.String("key", s.key), zap.Error(err))
		return Lines{}
	}
	lines, err := Decode(data)
	if err != nil {
		s.metrics.corrupt()
		s.logger.Warn("cart data corrupt, starting empty", zap.String("key", s.key), zap.Error(err))
		return Lines{}
	}
	return lines
}

// ItemCount is the sum of quantities in the persisted cart.
func (s *Store) ItemCount(ctx context.Context) int {
	return s.Load(ctx).Count()
}

// Add increments the line for productID by qty, creating it from the catalog
// snapshot if absent. qty below 1 counts as 1. Unknown products get a
// placeholder line.
func (s *Store) Add(ctx context.Context, productID string, qty int) Lines {
	productID = strings.TrimSpace(productID)
	lines := s.Load(ctx)
	if productID == "" {
		return lines
	}
	if qty < 1 {
		qty = 1
	}
	if i := lines.Index(productID); i >= 0 {
		lines[i].Qty = addQty(lines[i].Qty, qty)
	} else {
		lines = append(lines, s.newLine(productID, qty))
	}
	s.save(ctx, OpAdd, lines)
	return lines
}

func (s *Store) newLine(id string, qty int) Line {
	if s.products != nil {
		if p, ok := s.products.Lookup(id); ok {
			return Line{ID: p.ID, Title: p.Title, Price: p.Price, Img: p.Image(), Author: p.Author, Qty: qty}
		}
	}
	return PlaceholderLine(id, qty)
}

// PlaceholderLine stands in for a product that is not in the catalog.
func PlaceholderLine(id string, qty int) Line {
	return Line{ID: id, Title: "Товар " + id, Img: catalog.MissingImage, Qty: qty}
}

// SetQuantity overwrites the qty of an existing line with floor(qty). It
// reports false and leaves the cart untouched when qty is not finite, is
// below 1, or the line is absent.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty float64) (Lines, bool) {
	lines := s.Load(ctx)
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 1 {
		return lines, false
	}
	i := lines.Index(strings.TrimSpace(productID))
	if i < 0 {
		return lines, false
	}
	lines[i].Qty = clampQty(qty)
	s.save(ctx, OpSetQty, lines)
	return lines, true
}

// Remove deletes the line for productID. Removing an absent id writes nothing.
func (s *Store) Remove(ctx context.Context, productID string) Lines {
	lines := s.Load(ctx)
	productID = strings.TrimSpace(productID)
	if lines.Index(productID) < 0 {
		return lines
	}
	out := lines[:0]
	for _, l := range lines {
		if l.ID != productID {
			out = append(out, l)
		}
	}
	s.save(ctx, OpRemove, out)
	return out
}

// Clear deletes the key.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.metrics.storageError(OpClear)
		s.logger.Error("cart clear failed", zap.String("key", s.key), zap.Error(err))
	}
	s.metrics.mutation(OpClear)
	s.listeners.notify(ctx, Lines{})
}

// save is best effort: a failed write is logged and counted, and listeners
// still see the attempted state.
func (s *Store) save(ctx context.Context, op string, lines Lines) {
	data, err := Encode(lines)
	if err == nil {
		err = s.backend.Set(ctx, s.key, data)
	}
	if err != nil {
		s.metrics.storageError(op)
		s.logger.Error("cart write failed", zap.String("key", s.key), zap.String("op", op), zap.Error(err))
	}
	s.metrics.mutation(op)
	s.listeners.notify(ctx, lines)
}
