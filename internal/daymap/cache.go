package daymap

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/anchor/vaultaire/internal/bucket"
	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/logging"
	"github.com/anchor/vaultaire/internal/store"
	"github.com/anchor/vaultaire/internal/types"
)

var log = logging.Component("daymap")

type originDays struct {
	simpleSize   uint64
	extendedSize uint64
	simple       Map
	extended     Map
}

// Cache holds per-origin day maps, revalidated against the store by
// object size. Each reader worker owns its own Cache; concurrent
// refreshes of one origin within a cache are deduplicated.
type Cache struct {
	store store.Store

	mu      sync.Mutex
	origins map[types.Origin]*originDays
	sf      singleflight.Group
}

// NewCache returns an empty cache reading day files from s.
func NewCache(s store.Store) *Cache {
	return &Cache{
		store:   s,
		origins: make(map[types.Origin]*originDays),
	}
}

// Simple returns the cached simple day map for origin. Reports false
// when the origin is not cached.
func (c *Cache) Simple(origin types.Origin) (Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	od, ok := c.origins[origin]
	if !ok {
		return nil, false
	}
	return od.simple, true
}

// Extended returns the cached extended day map for origin. Reports
// false when the origin is not cached.
func (c *Cache) Extended(origin types.Origin) (Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	od, ok := c.origins[origin]
	if !ok {
		return nil, false
	}
	return od.extended, true
}

// Refresh makes the cache entry for origin current. An absent or
// expired entry loads both day files; a load failure on a fresh origin
// is logged and leaves the cache unchanged. A stat failure against an
// existing entry returns ErrCacheInconsistent, which the caller must
// treat as fatal: the cache cannot be trusted if the store is
// inconsistent.
func (c *Cache) Refresh(ctx context.Context, origin types.Origin) error {
	_, err, _ := c.sf.Do(string(origin), func() (interface{}, error) {
		return nil, c.refresh(ctx, origin)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context, origin types.Origin) error {
	c.mu.Lock()
	od, cached := c.origins[origin]
	c.mu.Unlock()

	if cached {
		expired, err := c.expired(ctx, origin, od)
		if err != nil {
			if ctx.Err() != nil {
				return verrors.ErrShutdown
			}
			return verrors.Wrapf(verrors.ErrCacheInconsistent, "origin %q", origin)
		}
		if !expired {
			return nil
		}
	}

	loaded, err := c.load(ctx, origin)
	if err != nil {
		log.Warn("day map load failed, cache unchanged", "origin", string(origin), "error", err)
		return nil
	}

	c.mu.Lock()
	c.origins[origin] = loaded
	c.mu.Unlock()
	return nil
}

// expired stats the simple day file first; a size change expires the
// entry without touching the extended file.
func (c *Cache) expired(ctx context.Context, origin types.Origin, od *originDays) (bool, error) {
	st, err := c.store.Stat(ctx, bucket.SimpleDayOid(origin))
	if err != nil {
		return false, err
	}
	if st.Size != od.simpleSize {
		return true, nil
	}

	st, err = c.store.Stat(ctx, bucket.ExtendedDayOid(origin))
	if err != nil {
		return false, err
	}
	return st.Size != od.extendedSize, nil
}

func (c *Cache) load(ctx context.Context, origin types.Origin) (*originDays, error) {
	simpleData, err := c.store.ReadFull(ctx, bucket.SimpleDayOid(origin))
	if err != nil {
		return nil, verrors.Wrap(err, "simple day file")
	}
	simple, err := Decode(simpleData)
	if err != nil {
		return nil, verrors.Wrap(err, "simple day file")
	}

	extendedData, err := c.store.ReadFull(ctx, bucket.ExtendedDayOid(origin))
	if err != nil {
		return nil, verrors.Wrap(err, "extended day file")
	}
	extended, err := Decode(extendedData)
	if err != nil {
		return nil, verrors.Wrap(err, "extended day file")
	}

	return &originDays{
		simpleSize:   uint64(len(simpleData)),
		extendedSize: uint64(len(extendedData)),
		simple:       simple,
		extended:     extended,
	}, nil
}
