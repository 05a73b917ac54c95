package alerthub

import (
	"testing"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
)

func testAlert(tenant string) model.LiveAlert {
	return model.LiveAlert{
		ID:        "evt-1",
		TenantID:  tenant,
		Title:     "test",
		Severity:  model.AlertWarning,
		Category:  model.CategoryCollisionRisk,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSubscribeReceivesMatchingTenant(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("tenant-a")
	h.Publish(testAlert("tenant-a"))

	select {
	case got := <-sub.Alerts:
		if got.TenantID != "tenant-a" {
			t.Fatalf("unexpected tenant on received alert: %s", got.TenantID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for alert")
	}
}

func TestSubscriberDoesNotReceiveOtherTenant(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("tenant-a")
	h.Publish(testAlert("tenant-b"))

	select {
	case got := <-sub.Alerts:
		t.Fatalf("did not expect to receive cross-tenant alert, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDefaultTenantAlertReachesOnlyDefaultSubscribers(t *testing.T) {
	h := New(nil)
	subDefault := h.Subscribe(model.DefaultTenant)
	subA := h.Subscribe("tenant-a")
	h.Publish(testAlert(model.DefaultTenant))

	select {
	case <-subDefault.Alerts:
	case <-time.After(time.Second):
		t.Fatalf("default-tenant subscriber did not receive the default-tenant alert")
	}
	select {
	case got := <-subA.Alerts:
		t.Fatalf("tenant-a subscriber must not receive a default-tenant alert, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("tenant-a")
	h.Unsubscribe(sub.ID)

	_, ok := <-sub.Alerts
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestLaggedSignalsWhenBufferFull(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("tenant-a")

	for i := 0; i < channelBuffer+5; i++ {
		h.Publish(testAlert("tenant-a"))
	}

	select {
	case <-sub.Lagged:
	default:
		t.Fatal("expected a lagged signal once the subscriber's buffer filled")
	}
}

func TestSizeTracksSubscribers(t *testing.T) {
	h := New(nil)
	if h.Size() != 0 {
		t.Fatalf("expected 0 subscribers initially, got %d", h.Size())
	}
	sub := h.Subscribe("tenant-a")
	if h.Size() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Size())
	}
	h.Unsubscribe(sub.ID)
	if h.Size() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", h.Size())
	}
}
