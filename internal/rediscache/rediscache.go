// Package rediscache is an optional second-tier cache of propagated
// InstantaneousState blobs, consulted behind the catalog's in-process LRU.
// It is only active when a Redis address is configured.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New dials Redis and verifies reachability with a Ping. TTL bounds how
// long a propagated state may be served from the cache before the catalog
// recomputes it.
func New(ctx context.Context, addr string, ttl time.Duration, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("rediscache: address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("rediscache: ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

func key(catalogID uint64, bucketUnix int64) string {
	return fmt.Sprintf("ssa:pos:%d:%d", catalogID, bucketUnix)
}

// minuteBucket rounds an instant down to the minute, so repeated queries for
// "now" within the same minute hit the same cache entry.
func minuteBucket(at time.Time) int64 {
	return at.UTC().Truncate(time.Minute).Unix()
}

// Get returns a cached state for catalogID at the minute bucket containing
// at, if present.
func (c *Client) Get(ctx context.Context, catalogID uint64, at time.Time) (model.InstantaneousState, bool, error) {
	start := time.Now()
	raw, err := c.rdb.Get(ctx, key(catalogID, minuteBucket(at))).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
		return model.InstantaneousState{}, false, nil
	}
	observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return model.InstantaneousState{}, false, fmt.Errorf("rediscache: get %d: %w", catalogID, err)
	}

	var st model.InstantaneousState
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.InstantaneousState{}, false, fmt.Errorf("rediscache: decode %d: %w", catalogID, err)
	}
	return st, true, nil
}

// Set stores a computed state keyed by the minute bucket containing its
// timestamp.
func (c *Client) Set(ctx context.Context, st model.InstantaneousState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("rediscache: encode %d: %w", st.CatalogID, err)
	}
	start := time.Now()
	err = c.rdb.Set(ctx, key(st.CatalogID, minuteBucket(st.Timestamp)), raw, c.ttl).Err()
	observability.ObserveCacheOp("set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("rediscache: set %d: %w", st.CatalogID, err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("rediscache: close: %w", err)
	}
	return nil
}
