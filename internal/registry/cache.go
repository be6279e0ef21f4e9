// Package registry holds a read-through snapshot of the customer registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/service"
)

// DefaultTTL is how long a fetched snapshot is considered fresh.
const DefaultTTL = 5 * time.Minute

// Config tunes the cache.
type Config struct {
	Clock Clock
	// StaleGrace lets an expired snapshot be served while refetches fail, for
	// at most this long past expiry. Zero disables stale serving.
	StaleGrace time.Duration
	TTL        time.Duration
	Retry      service.RetryOptions
}

// Cache is a read-through cache of the registry's identities. It wraps the
// registry so that creating an identity invalidates the snapshot.
type Cache struct {
	registry  service.Registry
	clock     Clock
	logger    *slog.Logger
	fetchedAt time.Time
	snapshot  []model.Identity
	cfg       Config
	mu        sync.RWMutex
	valid     bool
}

var _ service.Registry = (*Cache)(nil)

// NewCache wraps registry with a snapshot cache.
func NewCache(registry service.Registry, cfg Config, logger *slog.Logger) *Cache {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		registry: registry,
		clock:    cfg.Clock,
		logger:   logger,
		cfg:      cfg,
	}
}

// Snapshot returns the registry identities in registry order, fetching them
// when the cached copy is missing or older than the TTL. A failed fetch is a
// *common.RegistryUnavailableError unless a stale copy is still inside the
// grace window.
func (c *Cache) Snapshot(ctx context.Context) ([]model.Identity, error) {
	now := c.clock.Now()

	c.mu.RLock()
	if c.valid && now.Before(c.fetchedAt.Add(c.cfg.TTL)) {
		snapshot := c.snapshot
		c.mu.RUnlock()
		return cloneIdentities(snapshot), nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if c.valid && now.Before(c.fetchedAt.Add(c.cfg.TTL)) {
		return cloneIdentities(c.snapshot), nil
	}

	identities, err := common.RetryValue(ctx, func() ([]model.Identity, error) {
		ids, err := c.registry.ListAllIdentities(ctx)
		if errors.Is(err, context.Canceled) {
			return nil, common.Permanent(err)
		}
		return ids, err
	}, c.cfg.Retry)
	if err != nil {
		if c.valid && c.cfg.StaleGrace > 0 && now.Before(c.fetchedAt.Add(c.cfg.TTL+c.cfg.StaleGrace)) {
			c.logger.Warn("Registry refresh failed, serving stale snapshot",
				"age", now.Sub(c.fetchedAt),
				"identities", len(c.snapshot),
				"error", err)
			return cloneIdentities(c.snapshot), nil
		}
		c.valid = false
		c.snapshot = nil
		return nil, &common.RegistryUnavailableError{Err: err}
	}

	c.snapshot = identities
	c.fetchedAt = now
	c.valid = true

	c.logger.Debug("Fetched registry snapshot", "identities", len(identities))
	return cloneIdentities(identities), nil
}

// ListAllIdentities serves the cached snapshot.
func (c *Cache) ListAllIdentities(ctx context.Context) ([]model.Identity, error) {
	return c.Snapshot(ctx)
}

// CreateIdentity creates through the underlying registry and drops the
// snapshot so the new identity is visible on the next read.
func (c *Cache) CreateIdentity(ctx context.Context, name, phone string, attrs model.Attributes) (*model.Identity, error) {
	identity, err := c.registry.CreateIdentity(ctx, name, phone, attrs)
	if err != nil {
		return nil, err
	}
	c.Invalidate()
	return identity, nil
}

// Invalidate forces the next Snapshot to refetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.snapshot = nil
}

// Age reports how old the cached snapshot is.
func (c *Cache) Age() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return 0, fmt.Errorf("%w: no snapshot cached", common.ErrNotFound)
	}
	return c.clock.Now().Sub(c.fetchedAt), nil
}

func cloneIdentities(ids []model.Identity) []model.Identity {
	out := make([]model.Identity, len(ids))
	copy(out, ids)
	return out
}
