package vibezstd

import (
	"sort"
	"sync"
	"sync/atomic"
)

// The one-shot entry points cannot hold long-lived codec sessions, so they
// borrow them from a process-wide cache keyed by {role, dictionary id}.
// Contexts are stored in per-key sync.Pools: a borrowed context is owned by
// exactly one goroutine until returned, and sync.Pool's per-P caches keep
// reuse local to the scheduler thread, which is the Go shape of a
// thread-local pool.
//
// Dictionary id 0 is the "no dictionary" key. Raw-content dictionaries also
// report id 0 and intentionally share that key: their contexts carry no
// sticky dictionary state between uses.

type cacheRole uint8

const (
	roleCompress cacheRole = iota
	roleDecompress
)

func (r cacheRole) String() string {
	if r == roleCompress {
		return "compress"
	}
	return "decompress"
}

type cacheKey struct {
	role   cacheRole
	dictID uint32
}

type cacheEntry struct {
	pool    sync.Pool
	created atomic.Int64 // contexts ever created under this key
}

var contextCache = struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}{
	entries: make(map[cacheKey]*cacheEntry),
}

func cacheEntryFor(key cacheKey, newFn func() interface{}) *cacheEntry {
	contextCache.mu.Lock()
	defer contextCache.mu.Unlock()

	e := contextCache.entries[key]
	if e == nil {
		e = &cacheEntry{}
		e.pool.New = func() interface{} {
			e.created.Add(1)
			return newFn()
		}
		contextCache.entries[key] = e
	}
	return e
}

func cdictCacheKey(cd *CDict) uint32 {
	if cd == nil {
		return 0
	}
	return cd.ID()
}

func ddictCacheKey(dd *DDict) uint32 {
	if dd == nil {
		return 0
	}
	return dd.ID()
}

func borrowCCtx(dictID uint32) *cctxWrapper {
	e := cacheEntryFor(cacheKey{roleCompress, dictID}, newCCtx)
	return e.pool.Get().(*cctxWrapper)
}

func returnCCtx(dictID uint32, cw *cctxWrapper) {
	e := cacheEntryFor(cacheKey{roleCompress, dictID}, newCCtx)
	e.pool.Put(cw)
}

func borrowDCtx(dictID uint32) *dctxWrapper {
	e := cacheEntryFor(cacheKey{roleDecompress, dictID}, newDCtx)
	return e.pool.Get().(*dctxWrapper)
}

func returnDCtx(dictID uint32, dw *dctxWrapper) {
	e := cacheEntryFor(cacheKey{roleDecompress, dictID}, newDCtx)
	e.pool.Put(dw)
}

// ClearContextCache drops every cached context. Outstanding borrowed contexts
// are unaffected; dropped ones are reclaimed by their finalizers.
func ClearContextCache() {
	contextCache.mu.Lock()
	defer contextCache.mu.Unlock()
	contextCache.entries = make(map[cacheKey]*cacheEntry)
}

// ContextCacheKeyStats describes one {role, dictionary id} cache key.
type ContextCacheKeyStats struct {
	Role    string
	DictID  uint32
	Created int64
}

// ContextCacheStats reports the cache keys currently tracked and how many
// contexts each key has created, for observability and tests.
func ContextCacheStats() []ContextCacheKeyStats {
	contextCache.mu.Lock()
	defer contextCache.mu.Unlock()

	stats := make([]ContextCacheKeyStats, 0, len(contextCache.entries))
	for key, e := range contextCache.entries {
		stats = append(stats, ContextCacheKeyStats{
			Role:    key.role.String(),
			DictID:  key.dictID,
			Created: e.created.Load(),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Role != stats[j].Role {
			return stats[i].Role < stats[j].Role
		}
		return stats[i].DictID < stats[j].DictID
	})
	return stats
}
