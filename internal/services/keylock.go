package services

import (
	"sort"
	"sync"
)

// keyLock serializes writers per (product, location) key so that the
// project-check-append sequence in the ledger is atomic for a key without
// blocking unrelated keys. Entries are never evicted; the map is bounded by
// the product x location cardinality of the store.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// movementLocks is the process-wide writer registry. The ledger and the
// count reconciler write through the same keys, so they must share one
// registry for their critical sections to exclude each other.
var movementLocks = newKeyLock()

func movementKey(productID, locationID string) string {
	return productID + "|" + locationID
}

func (kl *keyLock) get(key string) *sync.Mutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &sync.Mutex{}
		kl.locks[key] = m
	}
	return m
}

// Acquire locks every distinct key in sorted order and returns the release
// function. Sorted acquisition keeps multi-key operations (transfers, count
// completion) from deadlocking against each other.
func (kl *keyLock) Acquire(keys ...string) func() {
	distinct := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			distinct = append(distinct, k)
		}
	}
	sort.Strings(distinct)

	held := make([]*sync.Mutex, 0, len(distinct))
	for _, k := range distinct {
		m := kl.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
