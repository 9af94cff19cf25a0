package cache

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/esbuild-dev/bundlerd/internal/storage"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open("bolt:" + filepath.Join(dir, "deps.boltdb"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	c, err := New(32, store)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestWithCacheDataHitSkipsFetch(t *testing.T) {
	c := newTestCache(t)
	calls := 0
	fetch := func() ([]byte, error) { calls++; return []byte("data"), nil }
	transform := func(b []byte) (string, error) { return string(b), nil }

	v1, err := WithCacheData(c, "/v2/deps/abc", fetch, transform)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := WithCacheData(c, "/v2/deps/abc", fetch, transform)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != "data" || v2 != "data" {
		t.Fatalf("unexpected values %q %q", v1, v2)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestWithCacheDataCorruptionTriggersRefetch(t *testing.T) {
	c := newTestCache(t)
	calls := 0
	fetch := func() ([]byte, error) { calls++; return []byte("good"), nil }
	transform := func(b []byte) (string, error) {
		if calls == 0 {
			return "", errors.New("boom")
		}
		return string(b), nil
	}

	// seed a record directly so the first transform call sees calls==0 and fails
	c.store.Put(BucketSandpackCDN, storage.Record{Request: "/v2/deps/xyz", Data: []byte("corrupt")})
	v, err := WithCacheData(c, "/v2/deps/xyz", fetch, transform)
	if err != nil {
		t.Fatal(err)
	}
	if v != "good" {
		t.Fatalf("got %q, want good", v)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestIsCached(t *testing.T) {
	c := newTestCache(t)
	if c.IsCached("/v2/deps/missing") {
		t.Fatal("should not be cached before any fetch")
	}
	WithCacheData(c, "/v2/deps/present", func() ([]byte, error) { return []byte("x"), nil }, func(b []byte) ([]byte, error) { return b, nil })
	if !c.IsCached("/v2/deps/present") {
		t.Fatal("should be cached after a fetch")
	}
}

func TestWithLocalCacheDataHitSkipsFetch(t *testing.T) {
	c := newTestCache(t)
	calls := 0
	fetch := func() ([]byte, error) { calls++; return []byte("local"), nil }
	transform := func(b []byte) (string, error) { return string(b), nil }

	WithLocalCacheData(c, "req", fetch, transform)
	WithLocalCacheData(c, "req", fetch, transform)

	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}
