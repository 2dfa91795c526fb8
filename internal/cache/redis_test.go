package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/trowelworks/strata/internal/db"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeKV) Incr(_ context.Context, key string) (int64, error) {
	n, _ := strconv.ParseInt(string(f.data[key]), 10, 64)
	n++
	f.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func TestRedis_SetGetClear(t *testing.T) {
	kv := newFakeKV()
	c := NewRedis(kv, "strata", time.Minute)
	ctx := context.Background()

	c.Set(ctx, "/query?q=amphora", []byte("body"))
	got, ok := c.Get(ctx, "/query?q=amphora")
	if !ok || string(got) != "body" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.Get(ctx, "/query?q=amphora"); ok {
		t.Error("cleared entry should miss")
	}
}

func TestRedis_ClearSurvivesRestart(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	first := NewRedis(kv, "strata", time.Minute)
	first.Set(ctx, "/query?q=amphora", []byte("stale"))
	if err := first.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	// A fresh instance over the same store must pick up the persisted
	// generation, not resurrect pre-clear entries.
	second := NewRedis(kv, "strata", time.Minute)
	if got, ok := second.Get(ctx, "/query?q=amphora"); ok {
		t.Fatalf("restarted cache served a cleared entry: %q", got)
	}

	second.Set(ctx, "/query?q=amphora", []byte("fresh"))
	if got, ok := first.Get(ctx, "/query?q=amphora"); !ok || string(got) != "fresh" {
		t.Errorf("instances diverged on generation: %q, %v", got, ok)
	}
}
