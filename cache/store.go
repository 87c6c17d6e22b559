package cache

import (
	"fmt"
	"time"

	"github.com/galleriad/immich-cache/utils"
)

// Kind identifies the cache class an entry belongs to
type Kind string

const (
	// KindAlbumThumb holds album cover thumbnails, keyed by album id
	KindAlbumThumb Kind = "albums"
	// KindImageThumb holds per-asset thumbnails, keyed by asset id
	KindImageThumb Kind = "images"
	// KindMeta holds JSON listing payloads
	KindMeta Kind = "meta"
)

// Kinds lists every cache kind
var Kinds = []Kind{KindAlbumThumb, KindImageThumb, KindMeta}

// ThumbKinds lists the thumbnail cache kinds
var ThumbKinds = []Kind{KindAlbumThumb, KindImageThumb}

// IsValid checks if the kind is a known cache kind
func (kind Kind) IsValid() bool {
	switch kind {
	case KindAlbumThumb, KindImageThumb, KindMeta:
		return true
	default:
		return false
	}
}

// MakeKey returns the cache key for an entity and variant.
// Keys are namespaced by kind so ids never collide across kinds.
func MakeKey(kind Kind, entityID string, variant string) string {
	return fmt.Sprintf("%s/%s_%s", kind, utils.SanitizeID(entityID), variant)
}

// Entry is a stored cache entry.
// Entries are immutable after creation; a refresh is a new entry
// replacing the old one under the same key.
type Entry interface {
	GetKey() string
	GetKind() Kind
	GetContentType() string
	GetSize() int
	GetCreationTime() time.Time

	GetData() ([]byte, error)
}

// Store is a key to bytes storage backend with per-kind bookkeeping
type Store interface {
	Release()

	GetTotalEntries() int
	GetEntryKeys() []string
	GetEntryKeysForKind(kind Kind) []string

	CreateEntry(key string, kind Kind, contentType string, data []byte, creationTime time.Time) (Entry, error)
	HasEntry(key string) bool
	GetEntry(key string) Entry
	DeleteEntry(key string) bool
	DeleteAllEntries() int
	DeleteAllEntriesForKind(kind Kind) int
}
