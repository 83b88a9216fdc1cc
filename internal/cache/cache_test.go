package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"value-radar/internal/model"
	"value-radar/internal/storage"
)

func TestCacheKeyNormalization(t *testing.T) {
	t.Parallel()

	got := Key(" Bondi Beach ", "nsw", "", "")
	if got != "bondi-beach|nsw|none|all" {
		t.Fatalf("unexpected key: %s", got)
	}
	got = Key("Bondi", "NSW", "2026", "House")
	if got != "bondi|nsw|2026|house" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestCacheTTLBoundary(t *testing.T) {
	t.Parallel()

	kv := storage.NewMemoryKV()
	c := NewSalesCache(kv, Config{TTL: "168h"})

	cachedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cachedAt }

	key := Key("Bondi", "NSW", "2026", "all")
	sales := []model.ComparableProperty{{Address: "1 Beach St", Price: 1000000}}
	if err := c.Put(context.Background(), key, sales); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	ttl := 168 * time.Hour

	// One second inside the window: hit.
	c.now = func() time.Time { return cachedAt.Add(ttl - time.Second) }
	if entry := c.Get(context.Background(), key); entry == nil {
		t.Fatalf("expected hit at cached_at+TTL-1s")
	}

	// One second past the window: miss, even though the record still exists.
	c.now = func() time.Time { return cachedAt.Add(ttl + time.Second) }
	if entry := c.Get(context.Background(), key); entry != nil {
		t.Fatalf("expected miss at cached_at+TTL+1s")
	}
	if _, err := kv.Get(context.Background(), "cache:"+key); err != nil {
		t.Fatalf("expected expired record to physically remain: %v", err)
	}
}

func TestCacheWriteReplacesWholesale(t *testing.T) {
	t.Parallel()

	c := NewSalesCache(storage.NewMemoryKV(), Config{})
	key := Key("Bondi", "NSW", "2026", "all")
	ctx := context.Background()

	if err := c.Put(ctx, key, []model.ComparableProperty{
		{Address: "1 Beach St", Price: 1000000},
		{Address: "2 Beach St", Price: 1100000},
	}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := c.Put(ctx, key, []model.ComparableProperty{{Address: "9 Hill Rd", Price: 900000}}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	entry := c.Get(ctx, key)
	if entry == nil {
		t.Fatalf("expected hit")
	}
	if len(entry.Sales) != 1 || entry.Sales[0].Address != "9 Hill Rd" {
		t.Fatalf("expected wholesale replacement, got %+v", entry.Sales)
	}
}

func TestCacheConcurrentWritersLastWriterWins(t *testing.T) {
	t.Parallel()

	c := NewSalesCache(storage.NewMemoryKV(), Config{})
	key := Key("Bondi", "NSW", "2026", "all")
	ctx := context.Background()

	listA := []model.ComparableProperty{{Address: "1 Beach St", Price: 1000000}}
	listB := []model.ComparableProperty{{Address: "2 Beach St", Price: 1200000}, {Address: "3 Beach St", Price: 1300000}}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = c.Put(ctx, key, listA) }()
	go func() { defer wg.Done(); _ = c.Put(ctx, key, listB) }()
	wg.Wait()

	entry := c.Get(ctx, key)
	if entry == nil {
		t.Fatalf("expected hit after concurrent writes")
	}
	// Exactly one of the two lists survives, never a merge.
	switch len(entry.Sales) {
	case 1:
		if entry.Sales[0].Address != "1 Beach St" {
			t.Fatalf("unexpected surviving list: %+v", entry.Sales)
		}
	case 2:
		if entry.Sales[0].Address != "2 Beach St" {
			t.Fatalf("unexpected surviving list: %+v", entry.Sales)
		}
	default:
		t.Fatalf("expected one of the two lists intact, got %d sales", len(entry.Sales))
	}
}
