package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const (
	keyPrefix = "weather:"
	// maxRelativeExp is memcached's limit for relative expirations; larger values
	// are read as unix timestamps.
	maxRelativeExp = 30 * 24 * 60 * 60
)

// NewMemcachedClient builds a client for addrs, a comma-separated server list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). Zero timeout or
// maxIdleConns keep the library defaults.
func NewMemcachedClient(addrs string, timeout time.Duration, maxIdleConns int) *memcache.Client {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return client
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// MemcachedCache implements Cache on memcached, storing values as JSON. Several
// caches can share one client by using distinct namespaces.
type MemcachedCache[T any] struct {
	client    *memcache.Client
	namespace string
}

// NewMemcachedCache returns a cache whose keys are prefixed with namespace.
func NewMemcachedCache[T any](client *memcache.Client, namespace string) *MemcachedCache[T] {
	return &MemcachedCache[T]{client: client, namespace: namespace}
}

// key escapes k so city names with spaces or non-ASCII letters are valid memcached keys.
func (c *MemcachedCache[T]) key(k string) string {
	return keyPrefix + c.namespace + ":" + url.QueryEscape(k)
}

// Get returns false, nil on a miss; false, err on a backend or decode error.
func (c *MemcachedCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("memcache get: %w", err)
	}
	var value T
	if err := json.Unmarshal(item.Value, &value); err != nil {
		return zero, false, fmt.Errorf("memcache decode: %w", err)
	}
	return value, true, nil
}

// Set stores value as JSON. TTLs outside memcached's relative range fall back to 1h.
func (c *MemcachedCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memcache encode: %w", err)
	}
	expSec := int32(ttl.Seconds())
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	if err := c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	}); err != nil {
		return fmt.Errorf("memcache set: %w", err)
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache[T]) Ping() error {
	return c.client.Ping()
}
