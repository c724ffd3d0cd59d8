package engine

import (
	"container/heap"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// Cache is the admission cache: a de-duplicating, expiring, priority
// ordered store of candidates keyed by token. It is owned by a single
// goroutine (the dispatcher) and needs no locking.
//
// Overwrites are handled lazily: an insert bumps the key's generation and
// pushes a fresh heap record; records whose generation no longer matches
// the map are stale and get discarded when they surface.
type Cache struct {
	entries map[string]*cacheEntry
	heap    recordHeap
	gen     uint64
	ttl     time.Duration

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

type cacheEntry struct {
	txHash     common.Hash
	simCtx     simulator.SimulateCtx
	origin     Origin
	poolHint   *common.Address
	generation uint64
	expiresAt  time.Time
}

type record struct {
	expiresAt  time.Time
	generation uint64
	token      string
	poolHint   *common.Address
}

type recordHeap []record

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	if !h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].expiresAt.Before(h[j].expiresAt)
	}
	return h[i].generation < h[j].generation
}

func (h recordHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *recordHeap) Push(x any) { *h = append(*h, x.(record)) }

func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	*h = old[:n-1]
	return rec
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Insert upserts the entry for token with a fresh generation and expiry.
// An existing entry for the same token is replaced; its heap record goes
// stale and will be skipped on pop.
func (c *Cache) Insert(token string, poolHint *common.Address, txHash common.Hash, simCtx simulator.SimulateCtx, origin Origin) {
	c.gen++
	expiresAt := c.now().Add(c.ttl)

	c.entries[token] = &cacheEntry{
		txHash:     txHash,
		simCtx:     simCtx,
		origin:     origin,
		poolHint:   poolHint,
		generation: c.gen,
		expiresAt:  expiresAt,
	}

	heap.Push(&c.heap, record{
		expiresAt:  expiresAt,
		generation: c.gen,
		token:      token,
		poolHint:   poolHint,
	})
}

// PopOne removes and returns the live candidate with the earliest expiry,
// or false when none remains. Stale records are discarded along the way;
// a current-generation record past its expiry removes the entry without
// returning it.
func (c *Cache) PopOne() (Candidate, bool) {
	now := c.now()
	for c.heap.Len() > 0 {
		top := heap.Pop(&c.heap).(record)

		entry, ok := c.entries[top.token]
		if !ok {
			// map no longer has this token: stale
			continue
		}
		if entry.generation != top.generation {
			// superseded by a newer insert; the newer record is still queued
			continue
		}
		if !entry.expiresAt.After(now) {
			// current but expired
			delete(c.entries, top.token)
			continue
		}

		delete(c.entries, top.token)
		return Candidate{
			Token:    top.token,
			PoolHint: top.poolHint,
			TxHash:   entry.txHash,
			SimCtx:   entry.simCtx,
			Origin:   entry.origin,
		}, true
	}
	return Candidate{}, false
}

// RemoveExpired reports and removes entries whose current generation has
// passed its expiry. It peeks rather than pops so the first live,
// unexpired record stops the sweep: everything behind it in the heap
// expires later.
func (c *Cache) RemoveExpired() []string {
	var expired []string
	now := c.now()

	for c.heap.Len() > 0 {
		top := c.heap[0]

		entry, ok := c.entries[top.token]
		if !ok {
			heap.Pop(&c.heap)
			continue
		}
		if entry.generation != top.generation {
			heap.Pop(&c.heap)
			continue
		}
		if entry.expiresAt.After(now) {
			break
		}

		expired = append(expired, top.token)
		delete(c.entries, top.token)
		heap.Pop(&c.heap)
	}

	return expired
}

// Len is the number of live entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
