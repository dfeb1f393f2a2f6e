package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("hit on an empty cache")
	}

	c.Set(ctx, "k", []byte("v"))

	got, ok := c.Get(ctx, "k")
	if !ok || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("got %q ok=%v", got, ok)
	}

	c.Delete(ctx, "k")

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("hit after delete")
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := New(10 * time.Millisecond)

	c.Set(ctx, "k", []byte("v"))

	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("miss before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("hit after expiry")
	}
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	c.Set(ctx, "k", []byte("old"))
	c.Set(ctx, "k", []byte("new"))

	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "new" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))

	c.Clear()

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("hit after clear")
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("hit after clear")
	}
}
