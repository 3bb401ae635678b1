package cart

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finitefield.org/manga-web/internal/catalog"
)

const testKey = "manga_cart_v1:test"

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Product{
		{ID: "m1", Title: "Влюбленный паразит", Author: "Koisuru kiseichuu", Price: decimal.NewFromInt(1199), Images: []string{"/assets/images/parasite1.png"}},
		{ID: "m2", Title: "Гуррен Лаганн", Author: "Накашима Казуки", Price: decimal.NewFromInt(2890), Images: []string{"/assets/images/gurren.png"}},
		{ID: "m3", Title: "Пунпун", Author: "Асано Инио", Price: decimal.RequireFromString("6730.50")},
	}, nil)
	require.NoError(t, err)
	return c
}

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend(nil)
	t.Cleanup(func() { _ = backend.Close() })
	return NewStore(backend, testKey, WithProducts(testCatalog(t))), backend
}

func TestAddToEmptyCartSnapshotsProduct(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	lines := s.Add(ctx, "m1", 1)
	require.Len(t, lines, 1)
	require.Equal(t, "m1", lines[0].ID)
	require.Equal(t, 1, lines[0].Qty)
	require.True(t, decimal.NewFromInt(1199).Equal(lines[0].Price))
	require.Equal(t, "/assets/images/parasite1.png", lines[0].Img)
	require.Equal(t, "Koisuru kiseichuu", lines[0].Author)
	require.Equal(t, 1, s.ItemCount(ctx))
}

func TestAddTwiceMergesQuantities(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Add(ctx, "m2", 2)
	lines := s.Add(ctx, "m2", 3)
	require.Len(t, lines, 1)
	require.Equal(t, 5, lines[0].Qty)
	require.Equal(t, lines, s.Load(ctx))
}

func TestAddCoercesNonPositiveQty(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	lines := s.Add(ctx, "m1", 0)
	require.Equal(t, 1, lines[0].Qty)
	lines = s.Add(ctx, "m1", -5)
	require.Equal(t, 2, lines[0].Qty)
}

func TestAddUnknownProductUsesPlaceholder(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(nil)
	s := NewStore(backend, testKey) // no catalog loaded

	lines := s.Add(ctx, "zz9", 1)
	require.Len(t, lines, 1)
	require.Equal(t, "Товар zz9", lines[0].Title)
	require.True(t, lines[0].Price.IsZero())
	require.Equal(t, catalog.MissingImage, lines[0].Img)
	require.Empty(t, lines[0].Author)
}

func TestAddEmptyIDIsNoop(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	require.Empty(t, s.Add(ctx, "  ", 1))
	_, err := backend.Get(ctx, testKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetQuantityRejectsInvalidValues(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Add(ctx, "m1", 2)

	for _, q := range []float64{0, -1, 0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		lines, ok := s.SetQuantity(ctx, "m1", q)
		require.False(t, ok, "qty %v", q)
		require.Equal(t, 2, lines[0].Qty)
	}
	require.Equal(t, 2, s.Load(ctx)[0].Qty)
}

func TestSetQuantityFloorsAndOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Add(ctx, "m1", 2)

	lines, ok := s.SetQuantity(ctx, "m1", 4.9)
	require.True(t, ok)
	require.Equal(t, 4, lines[0].Qty)

	_, ok = s.SetQuantity(ctx, "m2", 3)
	require.False(t, ok, "absent line")
	require.Len(t, s.Load(ctx), 1)
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	s.Add(ctx, "m1", 1)
	s.Add(ctx, "m2", 1)

	lines := s.Remove(ctx, "m1")
	require.Len(t, lines, 1)
	require.Equal(t, "m2", lines[0].ID)
	require.Equal(t, lines, s.Load(ctx))

	s.Clear(ctx)
	require.Empty(t, s.Load(ctx))
	require.Zero(t, s.ItemCount(ctx))
	_, err := backend.Get(ctx, testKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveAbsentIDWritesNothing(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	changes, stop, err := backend.Subscribe(ctx, testKey)
	require.NoError(t, err)
	defer stop()
	notified := 0
	s.OnChange(func(context.Context, Lines) { notified++ })

	require.Empty(t, s.Remove(ctx, "nope"))
	_, err = backend.Get(ctx, testKey)
	require.ErrorIs(t, err, ErrNotFound, "key is not created")

	s.Add(ctx, "m1", 1)
	<-changes
	lines := s.Remove(ctx, "m2")
	require.Len(t, lines, 1)
	require.Equal(t, 1, notified)
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %q", c.Value)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNoDuplicateIDsAfterMixedOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ops := []func(){
		func() { s.Add(ctx, "m1", 1) },
		func() { s.Add(ctx, "m2", 2) },
		func() { s.Add(ctx, "m1", 3) },
		func() { s.SetQuantity(ctx, "m2", 7) },
		func() { s.Remove(ctx, "m1") },
		func() { s.Add(ctx, "m1", 1) },
		func() { s.Add(ctx, "m3", 1) },
		func() { s.Add(ctx, "m2", 1) },
	}
	for _, op := range ops {
		op()
		seen := map[string]bool{}
		for _, l := range s.Load(ctx) {
			require.False(t, seen[l.ID], "duplicate %s", l.ID)
			require.GreaterOrEqual(t, l.Qty, 1)
			seen[l.ID] = true
		}
	}
}

func TestRandomOperationSequencesKeepLinesUnique(t *testing.T) {
	ctx := context.Background()
	ids := []string{"m1", "m2", "m3", "zz9"}
	rng := rand.New(rand.NewSource(20240601))

	for run := 0; run < 20; run++ {
		s, _ := newTestStore(t)
		for step := 0; step < 50; step++ {
			id := ids[rng.Intn(len(ids))]
			switch rng.Intn(3) {
			case 0:
				s.Add(ctx, id, rng.Intn(5)-1)
			case 1:
				s.SetQuantity(ctx, id, float64(rng.Intn(12)-3)+rng.Float64())
			case 2:
				s.Remove(ctx, id)
			}
			seen := map[string]bool{}
			for _, l := range s.Load(ctx) {
				require.False(t, seen[l.ID], "run %d step %d: duplicate %s", run, step, l.ID)
				require.GreaterOrEqual(t, l.Qty, 1, "run %d step %d: %s", run, step, l.ID)
				seen[l.ID] = true
			}
		}
	}
}

func TestTotalIsSumOfSubtotals(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Add(ctx, "m1", 2)
	lines := s.Add(ctx, "m3", 3)

	want := decimal.NewFromInt(1199 * 2).Add(decimal.RequireFromString("6730.50").Mul(decimal.NewFromInt(3)))
	require.True(t, want.Equal(lines.Total()), "got %s", lines.Total())
	require.Equal(t, "22589.5", lines.Total().String())
	require.True(t, Lines{}.Total().IsZero())
}

func TestLastWriterWinsAcrossStores(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(nil)
	cat := testCatalog(t)
	a := NewStore(backend, testKey, WithProducts(cat))
	b := NewStore(backend, testKey, WithProducts(cat))

	a.Add(ctx, "m2", 1)
	require.Equal(t, 1, b.Load(ctx)[0].Qty)

	_, ok := a.SetQuantity(ctx, "m2", 3)
	require.True(t, ok)
	_, ok = b.SetQuantity(ctx, "m2", 5)
	require.True(t, ok)

	require.Equal(t, 5, a.Load(ctx)[0].Qty)
	require.Equal(t, 5, b.Load(ctx)[0].Qty)
}

func TestListenersRunInOrderAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var calls []string
	s.OnChange(func(_ context.Context, lines Lines) { calls = append(calls, "first") })
	s.OnChange(func(_ context.Context, lines Lines) { calls = append(calls, "second") })

	s.Add(ctx, "m1", 1)
	s.SetQuantity(ctx, "m1", 0) // rejected, no notification
	s.SetQuantity(ctx, "m1", 2)
	s.Remove(ctx, "m1")
	s.Clear(ctx)

	require.Equal(t, []string{
		"first", "second",
		"first", "second",
		"first", "second",
		"first", "second",
	}, calls)
}

func TestForSharesBackendButNotKey(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var notified int
	s.OnChange(func(context.Context, Lines) { notified++ })

	alice := s.For("manga_cart_v1:alice")
	bob := s.For("manga_cart_v1:bob")
	alice.Add(ctx, "m1", 1)

	require.Equal(t, 1, alice.ItemCount(ctx))
	require.Zero(t, bob.ItemCount(ctx))
	require.Zero(t, s.ItemCount(ctx))
	require.Equal(t, 1, notified)
}

func TestLoadTreatsCorruptDataAsEmpty(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	backend := NewMemoryBackend(nil)
	s := NewStore(backend, testKey, WithMetrics(metrics))

	for _, raw := range []string{`{not json`, `{"id":"m1"}`, `"str"`, `null`} {
		require.NoError(t, backend.Set(ctx, testKey, []byte(raw)))
		require.Empty(t, s.Load(ctx), raw)
	}
	require.Equal(t, float64(4), testutil.ToFloat64(metrics.corruptLoads))
}

type failingBackend struct {
	*MemoryBackend
}

func (f failingBackend) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestWriteFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	s := NewStore(failingBackend{NewMemoryBackend(nil)}, testKey,
		WithProducts(testCatalog(t)), WithMetrics(metrics))
	var seen Lines
	s.OnChange(func(_ context.Context, lines Lines) { seen = lines })

	lines := s.Add(ctx, "m1", 1)
	require.Len(t, lines, 1, "attempted state is returned")
	require.Equal(t, lines, seen)
	require.Empty(t, s.Load(ctx), "nothing was persisted")
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.storageErrors.WithLabelValues(OpAdd)))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.mutations.WithLabelValues(OpAdd)))
}
