// Package alerthub fans out LiveAlert events to subscribers without ever
// blocking a publisher on a slow reader: each subscriber gets a bounded
// channel, and a full channel signals the subscriber to resync rather than
// stalling the publish path.
package alerthub

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
)

const (
	numShards     = 64
	channelBuffer = 256
)

// Subscription is the handle returned to a caller of Subscribe. Alerts
// delivers only events whose TenantID equals the subscriber's tenant; a
// subscriber bound to model.DefaultTenant receives the default-tenant alerts.
// Lagged fires (non-blocking, capacity 1) whenever Alerts was full at
// publish time — a subscriber that sees this has missed at least one event
// and should reconcile its view from a fresh snapshot rather than assume
// Alerts is a complete stream.
type Subscription struct {
	ID     string
	Tenant string
	Alerts <-chan model.LiveAlert
	Lagged <-chan struct{}
}

type subscriber struct {
	id     string
	tenant string
	ch     chan model.LiveAlert
	lagged chan struct{}
}

type shard struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

// Hub is the process-wide broadcast point. A nil *Hub is not valid; use New.
type Hub struct {
	shards [numShards]shard
	log    *slog.Logger
}

func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{log: log}
	for i := range h.shards {
		h.shards[i].subs = make(map[string]*subscriber)
	}
	return h
}

func (h *Hub) pick(id string) *shard {
	sum := xxhash.Sum64String(id)
	return &h.shards[sum&(uint64(len(h.shards))-1)]
}

// Subscribe registers a new subscriber bound to tenant and returns its
// handle. An empty tenant is treated as model.DefaultTenant.
func (h *Hub) Subscribe(tenant string) Subscription {
	if tenant == "" {
		tenant = model.DefaultTenant
	}
	sub := &subscriber{
		id:     uuid.NewString(),
		tenant: tenant,
		ch:     make(chan model.LiveAlert, channelBuffer),
		lagged: make(chan struct{}, 1),
	}
	s := h.pick(sub.id)
	s.mu.Lock()
	s.subs[sub.id] = sub
	s.mu.Unlock()

	observability.SetAlertSubscribers(h.Size())
	return Subscription{ID: sub.id, Tenant: sub.tenant, Alerts: sub.ch, Lagged: sub.lagged}
}

// Unsubscribe removes a subscriber and closes its channels. Safe to call
// more than once for the same ID.
func (h *Hub) Unsubscribe(id string) {
	s := h.pick(id)
	s.mu.Lock()
	sub, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	s.mu.Unlock()
	if ok {
		close(sub.ch)
	}
	observability.SetAlertSubscribers(h.Size())
}

// Publish fans an alert out to every subscriber whose tenant equals
// alert.TenantID; an alert for model.DefaultTenant reaches only subscribers
// bound to model.DefaultTenant. A subscriber with a full channel is skipped
// for this alert and signaled on Lagged instead of blocking the publish.
func (h *Hub) Publish(alert model.LiveAlert) {
	for i := range h.shards {
		h.shards[i].mu.RLock()
		for _, sub := range h.shards[i].subs {
			if sub.tenant != alert.TenantID {
				continue
			}
			select {
			case sub.ch <- alert:
			default:
				select {
				case sub.lagged <- struct{}{}:
				default:
				}
				h.log.Warn("alert subscriber lagging, dropping event", "subscriber_id", sub.id, "tenant", sub.tenant)
			}
		}
		h.shards[i].mu.RUnlock()
	}
	observability.IncAlertPublished(string(alert.Category), string(alert.Severity))
}

// Size returns the total number of currently registered subscribers.
func (h *Hub) Size() int {
	total := 0
	for i := range h.shards {
		h.shards[i].mu.RLock()
		total += len(h.shards[i].subs)
		h.shards[i].mu.RUnlock()
	}
	return total
}
