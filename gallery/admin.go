package gallery

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/galleriad/immich-cache/cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// ThumbStats aggregates the two thumbnail cache kinds
type ThumbStats struct {
	TotalFiles int             `json:"total_files"`
	TotalBytes int64           `json:"total_bytes"`
	TotalHuman string          `json:"total_human"`
	Albums     cache.KindStats `json:"albums"`
	Images     cache.KindStats `json:"images"`
}

// TTLStats reports the configured TTL classes in seconds,
// 0 meaning never expire
type TTLStats struct {
	Thumbs int64 `json:"thumbs"`
	Meta   int64 `json:"meta"`
}

// Stats is the cache statistics document served to the admin surface
type Stats struct {
	Thumbs ThumbStats      `json:"thumbs"`
	Meta   cache.KindStats `json:"meta"`
	TTL    TTLStats        `json:"ttl"`
}

// Admin is the cache administration surface: read-only statistics,
// explicit invalidation and forced metadata refresh.
// All operations are idempotent; clearing an empty class returns 0.
type Admin struct {
	store    *cache.TTLStore
	metadata *MetadataService
}

// NewAdmin creates a new Admin over the cache store and metadata service
func NewAdmin(store *cache.TTLStore, metadata *MetadataService) *Admin {
	return &Admin{
		store:    store,
		metadata: metadata,
	}
}

// GetStats returns cache statistics computed over non-expired entries
func (admin *Admin) GetStats() Stats {
	storeStats := admin.store.GetStats()

	albums := storeStats.Kinds[cache.KindAlbumThumb]
	images := storeStats.Kinds[cache.KindImageThumb]

	thumbs := ThumbStats{
		TotalFiles: albums.Files + images.Files,
		TotalBytes: albums.Bytes + images.Bytes,
		Albums:     albums,
		Images:     images,
	}
	thumbs.TotalHuman = humanize.Bytes(uint64(thumbs.TotalBytes))

	return Stats{
		Thumbs: thumbs,
		Meta:   storeStats.Kinds[cache.KindMeta],
		TTL: TTLStats{
			Thumbs: int64(storeStats.ThumbTTL.Seconds()),
			Meta:   int64(storeStats.MetaTTL.Seconds()),
		},
	}
}

// ClearThumbs removes cached thumbnails and returns the number removed.
// kind may be empty (both thumbnail kinds), "albums" or "images".
func (admin *Admin) ClearThumbs(kind string) (int, error) {
	logger := log.WithFields(log.Fields{
		"package":  "gallery",
		"struct":   "Admin",
		"function": "ClearThumbs",
	})

	switch cache.Kind(kind) {
	case cache.KindAlbumThumb, cache.KindImageThumb:
		removed := admin.store.Invalidate(cache.Kind(kind))
		logger.Infof("cleared %d %s thumbnails", removed, kind)
		return removed, nil
	default:
		if kind != "" {
			return 0, xerrors.Errorf("kind must be empty, %q or %q", cache.KindAlbumThumb, cache.KindImageThumb)
		}
	}

	removed := admin.store.Invalidate(cache.ThumbKinds...)
	logger.Infof("cleared %d thumbnails", removed)
	return removed, nil
}

// ClearMeta removes all cached metadata listings and returns the number removed
func (admin *Admin) ClearMeta() int {
	logger := log.WithFields(log.Fields{
		"package":  "gallery",
		"struct":   "Admin",
		"function": "ClearMeta",
	})

	removed := admin.store.Invalidate(cache.KindMeta)
	logger.Infof("cleared %d metadata entries", removed)
	return removed
}

// RefreshAlbums invalidates the album listing and force-fetches it,
// returning the number of albums refreshed
func (admin *Admin) RefreshAlbums(ctx context.Context) (int, error) {
	admin.metadata.InvalidateAlbums()

	albums, err := admin.metadata.GetAlbums(ctx, true)
	if err != nil {
		return 0, err
	}
	return len(albums), nil
}

// RefreshAlbumAssets invalidates the asset listing of an album and
// force-fetches it, returning the number of assets refreshed
func (admin *Admin) RefreshAlbumAssets(ctx context.Context, albumID string) (int, error) {
	admin.metadata.InvalidateAlbumAssets(albumID)

	assets, err := admin.metadata.GetAlbumAssets(ctx, albumID, true)
	if err != nil {
		return 0, err
	}
	return len(assets), nil
}
