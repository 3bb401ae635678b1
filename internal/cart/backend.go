package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Backend.Get when the key holds no value.
var ErrNotFound = errors.New("cart: key not found")

// Change describes a write to a key. Value is nil when the key was deleted.
// Origin identifies the tab that caused the write, if known.
type Change struct {
	Key    string `json:"key"`
	Value  []byte `json:"value"`
	Origin string `json:"origin,omitempty"`
}

// Deleted reports whether the change removed the key.
func (c Change) Deleted() bool { return c.Value == nil }

// Backend is a key/value store with change notification. Set and Delete
// publish a Change to subscribers of the key, tagged with the origin found in
// ctx.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe streams changes to key until cancel is called or ctx ends.
	Subscribe(ctx context.Context, key string) (<-chan Change, func(), error)
	Close() error
}

type originKey struct{}

// WithOrigin tags writes made with ctx as coming from origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	if origin == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, origin)
}

// Origin returns the tag set by WithOrigin.
func Origin(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(originKey{}).(string)
	return v
}

// SubscriberBuffer is the channel capacity of each subscription.
const SubscriberBuffer = 16

// hub fans changes out to in-process subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the change.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	logger *zap.Logger
	closed bool
}

type subscription struct {
	ch   chan Change
	done chan struct{}
	once sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

func newHub(logger *zap.Logger) *hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hub{subs: map[string]map[*subscription]struct{}{}, logger: logger}
}

func (h *hub) subscribe(ctx context.Context, key string) (<-chan Change, func()) {
	sub := &subscription{ch: make(chan Change, SubscriberBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.stop()
		return sub.ch, func() {}
	}
	set, ok := h.subs[key]
	if !ok {
		set = map[*subscription]struct{}{}
		h.subs[key] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[key]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
		sub.stop()
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-sub.done:
			}
		}()
	}
	return sub.ch, cancel
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[c.Key] {
		select {
		case sub.ch <- c:
		default:
			h.logger.Debug("subscriber buffer full, change dropped", zap.String("key", c.Key))
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[string]map[*subscription]struct{}{}
	h.closed = true
	h.mu.Unlock()
	for _, set := range subs {
		for sub := range set {
			sub.stop()
		}
	}
}
