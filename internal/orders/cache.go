package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/pagination"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

// CacheStore is the Redis surface used by ListCache. *redis.Client satisfies it.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	CacheKey(parts ...string) string
}

// ListCache stores admin list pages under a version counter. Bumping the
// version orphans every cached page; they expire by TTL.
type ListCache struct {
	store CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewListCache(store CacheStore, ttl time.Duration, logg *logger.Logger) *ListCache {
	return &ListCache{store: store, ttl: ttl, logg: logg}
}

func (c *ListCache) versionKey() string {
	return c.store.CacheKey("orders", "version")
}

func (c *ListCache) version(ctx context.Context) (int64, error) {
	raw, err := c.store.Get(ctx, c.versionKey())
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *ListCache) pageKey(version int64, filters ListFilters, params pagination.Params) string {
	user, status := "-", "-"
	if filters.UserID != nil {
		user = filters.UserID.String()
	}
	if filters.Status != nil {
		status = filters.Status.String()
	}
	cursor := params.Cursor
	if cursor == "" {
		cursor = "-"
	}
	return c.store.CacheKey("orders", "v"+strconv.FormatInt(version, 10), user, status, strconv.Itoa(params.Limit), cursor)
}

// Load returns a cached page, or a miss. Cache errors count as misses.
func (c *ListCache) Load(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	version, err := c.version(ctx)
	if err != nil {
		c.logError(ctx, "order cache version read failed", err)
		return nil, false
	}
	raw, err := c.store.Get(ctx, c.pageKey(version, filters, params))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logError(ctx, "order cache read failed", err)
		}
		return nil, false
	}
	var list OrderList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, false
	}
	return &list, true
}

func (c *ListCache) Save(ctx context.Context, filters ListFilters, params pagination.Params, list *OrderList) {
	if c == nil || c.store == nil || list == nil {
		return
	}
	version, err := c.version(ctx)
	if err != nil {
		c.logError(ctx, "order cache version read failed", err)
		return
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.pageKey(version, filters, params), string(payload), c.ttl); err != nil {
		c.logError(ctx, "order cache write failed", err)
	}
}

// Invalidate bumps the version counter.
func (c *ListCache) Invalidate(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	if _, err := c.store.Incr(ctx, c.versionKey()); err != nil {
		return fmt.Errorf("bump order cache version: %w", err)
	}
	return nil
}

func (c *ListCache) logError(ctx context.Context, msg string, err error) {
	if c.logg != nil {
		c.logg.Error(ctx, msg, err)
	}
}
