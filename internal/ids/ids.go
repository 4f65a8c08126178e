// Package ids resolves user and group names to numeric ids and back.
//
// Lookups go through os/user and are cached in a bounded LRU. A Resolver is
// owned by a single component and is not shared between goroutines.
package ids

import (
	"fmt"
	"os/user"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheSize is the number of entries kept per direction and kind.
const CacheSize = 100

// Lookup is the source of truth behind a Resolver.
type Lookup interface {
	UserByName(name string) (uint32, error)
	UserByID(uid uint32) (string, error)
	GroupByName(name string) (uint32, error)
	GroupByID(gid uint32) (string, error)
}

// Resolver maps names to ids and ids to names.
type Resolver interface {
	UID(name string) (uint32, error)
	GID(name string) (uint32, error)
	UserName(uid uint32) (string, error)
	GroupName(gid uint32) (string, error)
}

// CachedResolver implements Resolver on top of a Lookup with LRU caches.
type CachedResolver struct {
	lookup     Lookup
	uids       *lru.Cache[string, uint32]
	gids       *lru.Cache[string, uint32]
	userNames  *lru.Cache[uint32, string]
	groupNames *lru.Cache[uint32, string]
}

// NewResolver returns a resolver backed by the system user database.
func NewResolver() *CachedResolver {
	return NewCachedResolver(SystemLookup{})
}

// NewCachedResolver wraps lookup with LRU caches of CacheSize entries.
func NewCachedResolver(lookup Lookup) *CachedResolver {
	return &CachedResolver{
		lookup:     lookup,
		uids:       mustCache[string, uint32](),
		gids:       mustCache[string, uint32](),
		userNames:  mustCache[uint32, string](),
		groupNames: mustCache[uint32, string](),
	}
}

func mustCache[K comparable, V any]() *lru.Cache[K, V] {
	c, err := lru.New[K, V](CacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return c
}

// UID returns the uid for a user name. Numeric names are accepted as ids.
func (r *CachedResolver) UID(name string) (uint32, error) {
	return cached(r.uids, name, func() (uint32, error) {
		if id, ok := numeric(name); ok {
			return id, nil
		}
		return r.lookup.UserByName(name)
	})
}

// GID returns the gid for a group name. Numeric names are accepted as ids.
func (r *CachedResolver) GID(name string) (uint32, error) {
	return cached(r.gids, name, func() (uint32, error) {
		if id, ok := numeric(name); ok {
			return id, nil
		}
		return r.lookup.GroupByName(name)
	})
}

// UserName returns the name of a uid.
func (r *CachedResolver) UserName(uid uint32) (string, error) {
	return cached(r.userNames, uid, func() (string, error) {
		return r.lookup.UserByID(uid)
	})
}

// GroupName returns the name of a gid.
func (r *CachedResolver) GroupName(gid uint32) (string, error) {
	return cached(r.groupNames, gid, func() (string, error) {
		return r.lookup.GroupByID(gid)
	})
}

func cached[K comparable, V any](c *lru.Cache[K, V], key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Add(key, v)
	return v, nil
}

func numeric(s string) (uint32, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// SystemLookup implements Lookup with os/user.
type SystemLookup struct{}

func (SystemLookup) UserByName(name string) (uint32, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up user %q: %w", name, err)
	}
	return parseID(u.Uid)
}

func (SystemLookup) UserByID(uid uint32) (string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", fmt.Errorf("failed to look up uid %d: %w", uid, err)
	}
	return u.Username, nil
}

func (SystemLookup) GroupByName(name string) (uint32, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up group %q: %w", name, err)
	}
	return parseID(g.Gid)
}

func (SystemLookup) GroupByID(gid uint32) (string, error) {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return "", fmt.Errorf("failed to look up gid %d: %w", gid, err)
	}
	return g.Name, nil
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return uint32(id), nil
}
