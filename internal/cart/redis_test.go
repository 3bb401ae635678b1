package cart

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func newMiniRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := NewRedisBackend(context.Background(), RedisOptions{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestRedisBackendContract(t *testing.T) {
	b, _ := newMiniRedisBackend(t)
	exerciseBackend(t, b, "manga_cart_test:"+ulid.Make().String())
}

// Set MANGA_WEB_TEST_REDIS_ADDR to run the contract against a real server.
func TestRedisBackendContractExternal(t *testing.T) {
	addr := os.Getenv("MANGA_WEB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MANGA_WEB_TEST_REDIS_ADDR not set")
	}
	b, err := NewRedisBackend(context.Background(), RedisOptions{Addr: addr}, nil)
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b, "manga_cart_test:"+ulid.Make().String())
}

func TestRedisSubscribeSkipsUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, mr := newMiniRedisBackend(t)

	changes, stop, err := b.Subscribe(ctx, "k")
	require.NoError(t, err)
	defer stop()

	mr.Publish(changesChannel("k"), "not json")
	require.NoError(t, b.Set(WithOrigin(ctx, "tab-b"), "k", []byte(`[]`)))

	select {
	case c := <-changes:
		require.Equal(t, "tab-b", c.Origin)
		require.Equal(t, `[]`, string(c.Value))
	case <-ctx.Done():
		t.Fatal("valid change not delivered after a malformed one")
	}
}

func TestRedisSubscriberStopClosesChannel(t *testing.T) {
	b, _ := newMiniRedisBackend(t)
	changes, stop, err := b.Subscribe(context.Background(), "k")
	require.NoError(t, err)
	stop()
	stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestNewRedisBackendFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedisBackend(context.Background(), RedisOptions{Addr: addr}, nil)
	require.Error(t, err)
}
