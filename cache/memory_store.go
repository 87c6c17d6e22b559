package cache

import (
	"sync"
	"time"

	lrucache "github.com/hashicorp/golang-lru"
	"golang.org/x/xerrors"
)

// MemoryEntry implements Entry with the payload held in memory
type MemoryEntry struct {
	key          string
	kind         Kind
	contentType  string
	creationTime time.Time
	data         []byte
}

// GetKey returns key of the entry
func (entry *MemoryEntry) GetKey() string {
	return entry.key
}

// GetKind returns kind of the entry
func (entry *MemoryEntry) GetKind() Kind {
	return entry.kind
}

// GetContentType returns content type of the entry payload
func (entry *MemoryEntry) GetContentType() string {
	return entry.contentType
}

// GetSize returns the payload size of the entry
func (entry *MemoryEntry) GetSize() int {
	return len(entry.data)
}

// GetCreationTime returns creation time of the entry
func (entry *MemoryEntry) GetCreationTime() time.Time {
	return entry.creationTime
}

// GetData returns the payload of the entry
func (entry *MemoryEntry) GetData() ([]byte, error) {
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, nil
}

// MemoryStore implements Store fully in memory
type MemoryStore struct {
	entryCap int
	cache    *lrucache.Cache
	kinds    map[Kind]map[string]bool
	mutex    sync.Mutex
}

// NewMemoryStore creates a new MemoryStore keeping at most entryCap entries
func NewMemoryStore(entryCap int) (Store, error) {
	memoryStore := &MemoryStore{
		entryCap: entryCap,
		cache:    nil,
		kinds:    map[Kind]map[string]bool{},
	}

	lruCache, err := lrucache.NewWithEvict(entryCap, memoryStore.onEvicted)
	if err != nil {
		return nil, xerrors.Errorf("failed to create LRU cache: %w", err)
	}

	memoryStore.cache = lruCache
	return memoryStore, nil
}

// Release releases resources
func (store *MemoryStore) Release() {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.kinds = map[Kind]map[string]bool{}
	store.cache.Purge()
}

// GetTotalEntries returns total number of entries in the store
func (store *MemoryStore) GetTotalEntries() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Len()
}

// GetEntryKeys returns all entry keys
func (store *MemoryStore) GetEntryKeys() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := []string{}
	for _, key := range store.cache.Keys() {
		if strkey, ok := key.(string); ok {
			keys = append(keys, strkey)
		}
	}
	return keys
}

// GetEntryKeysForKind returns all entry keys for the given kind
func (store *MemoryStore) GetEntryKeysForKind(kind Kind) []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := []string{}
	if cacheKind, ok := store.kinds[kind]; ok {
		for key := range cacheKind {
			if store.cache.Contains(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// CreateEntry creates a new entry stamped with the caller's creationTime,
// replacing any existing entry at the same key
func (store *MemoryStore) CreateEntry(key string, kind Kind, contentType string, data []byte, creationTime time.Time) (Entry, error) {
	if !kind.IsValid() {
		return nil, xerrors.Errorf("unknown cache kind %q", kind)
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	entry := &MemoryEntry{
		key:          key,
		kind:         kind,
		contentType:  contentType,
		creationTime: creationTime,
		data:         stored,
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.cache.Add(key, entry)

	if cacheKind, ok := store.kinds[kind]; ok {
		cacheKind[key] = true
	} else {
		cacheKind = map[string]bool{}
		cacheKind[key] = true
		store.kinds[kind] = cacheKind
	}

	return entry, nil
}

// HasEntry checks if the entry for the given key is present
func (store *MemoryStore) HasEntry(key string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Contains(key)
}

// GetEntry returns an entry with the given key
func (store *MemoryStore) GetEntry(key string) Entry {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if entry, ok := store.cache.Get(key); ok {
		if cacheEntry, ok := entry.(*MemoryEntry); ok {
			return cacheEntry
		}
	}

	return nil
}

// DeleteEntry deletes an entry with the given key,
// returning whether an entry was present
func (store *MemoryStore) DeleteEntry(key string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Remove(key)
}

// DeleteAllEntries deletes all entries and returns the number removed
func (store *MemoryStore) DeleteAllEntries() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	removed := store.cache.Len()

	store.kinds = map[Kind]map[string]bool{}
	store.cache.Purge()

	return removed
}

// DeleteAllEntriesForKind deletes all entries of the given kind
// and returns the number removed
func (store *MemoryStore) DeleteAllEntriesForKind(kind Kind) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	removed := 0
	if cacheKind, ok := store.kinds[kind]; ok {
		for key := range cacheKind {
			if store.cache.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

func (store *MemoryStore) onEvicted(key interface{}, entry interface{}) {
	if cacheEntry, ok := entry.(*MemoryEntry); ok {
		if cacheKind, ok := store.kinds[cacheEntry.kind]; ok {
			delete(cacheKind, cacheEntry.key)

			if len(cacheKind) == 0 {
				delete(store.kinds, cacheEntry.kind)
			}
		}
	}
}
