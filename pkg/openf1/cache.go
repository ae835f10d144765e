package openf1

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// DefaultFreshness is how long a resolved response keeps answering for
// its URL before a new upstream request is issued.
const DefaultFreshness = 30 * time.Second

// Cache deduplicates identical outbound requests within a freshness
// window. Concurrent callers for the same URL are coalesced onto a
// single in-flight request and all receive its result, success or
// failure. A failed request is evicted immediately so the next caller
// retries instead of replaying the error. Growth is bounded by the
// cardinality of distinct polled URLs, which is small and stable, so
// there is no eviction beyond staleness and failure.
type Cache struct {
	freshness time.Duration
	client    *http.Client
	group     singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	body    []byte
	fetched time.Time
}

func NewCache(freshness time.Duration) *Cache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Cache{
		freshness: freshness,
		client:    http.DefaultClient,
		entries:   make(map[string]cacheEntry),
		now:       time.Now,
	}
}

// Fetch returns the body for url, reusing a response resolved within
// the freshness window when one exists.
func (c *Cache) Fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.fresh(url); ok {
		return body, nil
	}
	v, err, _ := c.group.Do(url, func() (interface{}, error) {
		// A waiter queued behind a just-finished flight may arrive
		// here with the entry already fresh.
		if body, ok := c.fresh(url); ok {
			return body, nil
		}
		body, err := c.get(ctx, url)
		if err != nil {
			c.evict(url)
			return nil, err
		}
		c.store(url, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) fresh(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok || c.now().Sub(e.fetched) >= c.freshness {
		return nil, false
	}
	return e.body, true
}

func (c *Cache) store(url string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{body: body, fetched: c.now()}
}

func (c *Cache) evict(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

func (c *Cache) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", url)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response from %s", url)
	}
	return body, nil
}
