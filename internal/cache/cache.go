// Package cache is a small redis layer in front of the read-mostly product
// catalog. Misses and redis outages fall through to the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/products"

	"github.com/redis/go-redis/v9"
)

const (
	productListTTL = 60 * time.Second
	keyPrefix      = "products:list:"
)

type Conf struct {
	client *redis.Client
}

func NewConf(addr, password string) (*Conf, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Conf{client: client}, nil
}

// ListKey derives the cache key from the full query shape so different
// filters never collide.
func ListKey(f products.ListFilter) string {
	return fmt.Sprintf("%s%s:%s:%d:%d:%s:%s",
		keyPrefix, f.Name, f.Category, f.Limit, f.Offset, f.Sort, f.Order)
}

// GetProductList returns the cached listing, or (nil, false) on a miss.
func (c *Conf) GetProductList(ctx context.Context, key string) ([]products.Product, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var list []products.Product
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// SetProductList stores a listing with the catalog TTL.
func (c *Conf) SetProductList(ctx context.Context, key string, list []products.Product) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshalling product list: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, productListTTL).Err(); err != nil {
		return fmt.Errorf("caching product list: %w", err)
	}
	return nil
}

// InvalidateProducts drops every cached listing after a catalog write.
func (c *Conf) InvalidateProducts(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("deleting cache keys: %w", err)
	}
	return nil
}
