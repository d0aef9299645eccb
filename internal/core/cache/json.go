package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
)

var null = []byte("null")

// EntityKey is the cache key of one catalogue row, e.g. "species:3".
func EntityKey(kind string, id int64) string { return kind + ":" + strconv.FormatInt(id, 10) }

// GetOrLoadJSON caches load's result as JSON. A missing row (nil, nil) is
// cached too and comes back as nil.
func GetOrLoadJSON[T any](c *Cache, ctx context.Context, key string, load func(ctx context.Context) (*T, error)) (*T, error) {
	b, err := c.GetOrLoad(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil || v == nil {
			return null, err
		}
		return json.Marshal(v)
	})
	if err != nil || bytes.Equal(b, null) {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvalidateEntities drops the EntityKey of every id.
func (c *Cache) InvalidateEntities(ctx context.Context, kind string, ids ...int64) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, EntityKey(kind, id))
	}
	c.Invalidate(ctx, keys...)
}
