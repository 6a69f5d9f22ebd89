package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/Tiliavir/entrylog/internal/cache"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	m := cache.NewMemory(clock.Now)

	if err := m.Set(ctx, "page-1", []byte("rows"), 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := m.Get(ctx, "page-1"); !ok || string(got) != "rows" {
		t.Fatalf("Get = (%q, %v), want (rows, true)", got, ok)
	}

	clock.t = clock.t.Add(29 * time.Second)
	if _, ok := m.Get(ctx, "page-1"); !ok {
		t.Error("entry expired early")
	}

	clock.t = clock.t.Add(time.Second)
	if _, ok := m.Get(ctx, "page-1"); ok {
		t.Error("entry still present at ttl")
	}
}

func TestMemoryZeroTTLNotStored(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory(time.Now)
	_ = m.Set(ctx, "k", []byte("v"), 0)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("zero ttl value was stored")
	}
}

func TestMemoryCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory(time.Now)
	buf := []byte("abc")
	_ = m.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'X'
	if got, _ := m.Get(ctx, "k"); string(got) != "abc" {
		t.Errorf("Get = %q, want abc", got)
	}
}

func TestMemoryPurge(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory(time.Now)
	_ = m.Set(ctx, "a", []byte("1"), time.Minute)
	_ = m.Set(ctx, "b", []byte("2"), time.Minute)
	if err := m.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, ok := m.Get(ctx, k); ok {
			t.Errorf("%s survived Purge", k)
		}
	}
}

func TestNewBackends(t *testing.T) {
	for _, b := range []string{"", "none"} {
		c, err := cache.New(b, "")
		if err != nil || c != nil {
			t.Errorf("New(%q) = (%v, %v), want (nil, nil)", b, c, err)
		}
	}
	if c, err := cache.New("memory", ""); err != nil || c == nil {
		t.Errorf("New(memory) = (%v, %v)", c, err)
	}
	if c, err := cache.New("redis", "localhost:0"); err != nil || c == nil {
		t.Errorf("New(redis) = (%v, %v)", c, err)
	}
	if _, err := cache.New("memcached", ""); err == nil {
		t.Error("New(memcached): expected error")
	}
}
