package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/orbitalos/ssa/internal/core/model"
)

func newMini(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	c, err := New(ctx, mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSetThenGet(t *testing.T) {
	c := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	now := time.Now().UTC()
	st := model.InstantaneousState{
		CatalogID: 25544,
		Name:      "ISS (ZARYA)",
		Timestamp: now,
		AltKm:     420,
	}
	if err := c.Set(ctx, st); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, 25544, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.CatalogID != 25544 || got.AltKm != 420 {
		t.Fatalf("unexpected state returned: %+v", got)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, 99999, time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss")
	}
}

func TestNewRejectsEmptyAddr(t *testing.T) {
	_, err := New(context.Background(), "", time.Minute)
	if err == nil {
		t.Fatal("expected error for empty address")
	}
}
