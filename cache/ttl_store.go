package cache

import (
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// KindStats holds file count and byte size of one cache kind
type KindStats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Stats holds per-kind counters plus the configured TTL classes,
// computed on demand over non-expired entries only
type Stats struct {
	Kinds    map[Kind]KindStats
	ThumbTTL time.Duration
	MetaTTL  time.Duration
}

// TTLStore layers per-kind TTL expiry over a Store.
// TTLs are fixed at construction; a TTL <= 0 means entries of that
// class never expire.
type TTLStore struct {
	store    Store
	thumbTTL time.Duration
	metaTTL  time.Duration
	clock    clock.Clock
}

// NewTTLStore creates a new TTLStore over the given storage backend
func NewTTLStore(store Store, thumbTTL time.Duration, metaTTL time.Duration) *TTLStore {
	return NewTTLStoreWithClock(store, thumbTTL, metaTTL, clock.New())
}

// NewTTLStoreWithClock creates a new TTLStore with an injected clock
func NewTTLStoreWithClock(store Store, thumbTTL time.Duration, metaTTL time.Duration, clk clock.Clock) *TTLStore {
	return &TTLStore{
		store:    store,
		thumbTTL: thumbTTL,
		metaTTL:  metaTTL,
		clock:    clk,
	}
}

// Release releases the underlying storage backend
func (tstore *TTLStore) Release() {
	tstore.store.Release()
}

// GetTTLForKind returns the TTL class applied to the given kind
func (tstore *TTLStore) GetTTLForKind(kind Kind) time.Duration {
	if kind == KindMeta {
		return tstore.metaTTL
	}
	return tstore.thumbTTL
}

func (tstore *TTLStore) isExpired(entry Entry) bool {
	ttl := tstore.GetTTLForKind(entry.GetKind())
	if ttl <= 0 {
		return false
	}
	return tstore.clock.Now().Sub(entry.GetCreationTime()) >= ttl
}

// Get returns the entry for the given key, or nil on a miss.
// An expired entry is removed from the backend and reported as a miss.
func (tstore *TTLStore) Get(key string) Entry {
	entry := tstore.store.GetEntry(key)
	if entry == nil {
		return nil
	}

	if tstore.isExpired(entry) {
		tstore.store.DeleteEntry(key)
		return nil
	}

	return entry
}

// Put stores a payload under the given key, replacing any existing entry.
// The entry's age is measured against the store's clock, so creation is
// stamped from the same clock expiry reads from.
func (tstore *TTLStore) Put(key string, kind Kind, contentType string, data []byte) error {
	_, err := tstore.store.CreateEntry(key, kind, contentType, data, tstore.clock.Now())
	if err != nil {
		return xerrors.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for the given key,
// returning whether an entry was present
func (tstore *TTLStore) Delete(key string) bool {
	return tstore.store.DeleteEntry(key)
}

// Invalidate removes all entries of the given kinds and returns the
// number removed. With no kinds given it clears everything.
func (tstore *TTLStore) Invalidate(kinds ...Kind) int {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "TTLStore",
		"function": "Invalidate",
	})

	if len(kinds) == 0 {
		removed := tstore.store.DeleteAllEntries()
		logger.Debugf("invalidated all cache entries, removed %d", removed)
		return removed
	}

	removed := 0
	for _, kind := range kinds {
		removed += tstore.store.DeleteAllEntriesForKind(kind)
	}

	logger.Debugf("invalidated %v cache entries, removed %d", kinds, removed)
	return removed
}

// GetStats computes per-kind counters over non-expired entries.
// Expired entries found on the way are lazily removed.
func (tstore *TTLStore) GetStats() Stats {
	stats := Stats{
		Kinds:    map[Kind]KindStats{},
		ThumbTTL: tstore.thumbTTL,
		MetaTTL:  tstore.metaTTL,
	}

	for _, kind := range Kinds {
		kindStats := KindStats{}
		for _, key := range tstore.store.GetEntryKeysForKind(kind) {
			entry := tstore.store.GetEntry(key)
			if entry == nil {
				continue
			}
			if tstore.isExpired(entry) {
				tstore.store.DeleteEntry(key)
				continue
			}

			kindStats.Files++
			kindStats.Bytes += int64(entry.GetSize())
		}
		stats.Kinds[kind] = kindStats
	}

	return stats
}
