package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackend stores values as plain Redis strings and fans changes out
// through PUBLISH on "<key>:changes", so every web process sees every write.
type RedisBackend struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisOptions configures NewRedisBackend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisBackend connects and pings the server.
func NewRedisBackend(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cart: redis ping %s: %w", opts.Addr, err)
	}
	return &RedisBackend{client: client, logger: logger}, nil
}

func changesChannel(key string) string { return key + ":changes" }

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cart: redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("cart: redis set %s: %w", key, err)
	}
	r.publish(ctx, Change{Key: key, Value: append([]byte{}, value...), Origin: Origin(ctx)})
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cart: redis del %s: %w", key, err)
	}
	r.publish(ctx, Change{Key: key, Origin: Origin(ctx)})
	return nil
}

// publish failures are not write failures: the value is already stored.
func (r *RedisBackend) publish(ctx context.Context, c Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		r.logger.Warn("encode change", zap.String("key", c.Key), zap.Error(err))
		return
	}
	if err := r.client.Publish(ctx, changesChannel(c.Key), payload).Err(); err != nil {
		r.logger.Warn("publish change", zap.String("key", c.Key), zap.Error(err))
	}
}

func (r *RedisBackend) Subscribe(ctx context.Context, key string) (<-chan Change, func(), error) {
	ps := r.client.Subscribe(ctx, changesChannel(key))
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("cart: redis subscribe %s: %w", key, err)
	}

	out := make(chan Change, SubscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					r.logger.Warn("decode change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- c:
				default:
					r.logger.Debug("subscriber buffer full, change dropped", zap.String("key", c.Key))
				}
			}
		}
	}()
	return out, stop, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
