package gallery

import (
	"context"
	"encoding/json"

	"github.com/galleriad/immich-cache/cache"
	"github.com/galleriad/immich-cache/immich"
	log "github.com/sirupsen/logrus"
)

// metadata cache key variants
const (
	albumsListEntity   = "albums"
	albumsListVariant  = "list"
	albumAssetsVariant = "assets"
)

// EnrichedAlbum is the album listing record served to the gallery UI
type EnrichedAlbum struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AssetCount   int    `json:"assetCount"`
	CoverAssetID string `json:"coverAssetId,omitempty"`
}

// MetadataService serves album and asset listings through the TTL cache,
// falling back to the upstream client on a miss (cache-aside).
// Payloads are stored as JSON bytes under the metadata kind.
type MetadataService struct {
	store  *cache.TTLStore
	client immich.Client
}

// NewMetadataService creates a new MetadataService
func NewMetadataService(store *cache.TTLStore, client immich.Client) *MetadataService {
	return &MetadataService{
		store:  store,
		client: client,
	}
}

func albumsListKey() string {
	return cache.MakeKey(cache.KindMeta, albumsListEntity, albumsListVariant)
}

func albumAssetsKey(albumID string) string {
	return cache.MakeKey(cache.KindMeta, albumID, albumAssetsVariant)
}

// GetAlbums returns the album listing, cached under the metadata kind.
// With force set the cache is skipped and overwritten.
func (svc *MetadataService) GetAlbums(ctx context.Context, force bool) ([]*immich.Album, error) {
	albums := []*immich.Album{}
	err := svc.getListing(ctx, albumsListKey(), force, &albums, func(ctx context.Context) (interface{}, error) {
		return svc.client.ListAlbums(ctx)
	})
	if err != nil {
		return nil, err
	}
	return albums, nil
}

// GetAlbumAssets returns the asset listing of an album, cached under the
// metadata kind. With force set the cache is skipped and overwritten.
func (svc *MetadataService) GetAlbumAssets(ctx context.Context, albumID string, force bool) ([]*immich.Asset, error) {
	assets := []*immich.Asset{}
	err := svc.getListing(ctx, albumAssetsKey(albumID), force, &assets, func(ctx context.Context) (interface{}, error) {
		return svc.client.ListAlbumAssets(ctx, albumID)
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// getListing is the shared cache-aside path for JSON listings
func (svc *MetadataService) getListing(ctx context.Context, key string, force bool, out interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	logger := log.WithFields(log.Fields{
		"package":  "gallery",
		"struct":   "MetadataService",
		"function": "getListing",
	})

	if !force {
		if entry := svc.store.Get(key); entry != nil {
			data, err := entry.GetData()
			if err == nil {
				err = json.Unmarshal(data, out)
				if err == nil {
					logger.Debugf("cache hit %s", key)
					return nil
				}
			}

			// unreadable or corrupt entry, drop it and refetch
			logger.WithError(err).Warnf("failed to read cached listing %s", key)
			svc.store.Delete(key)
		}
	}

	logger.Debugf("cache miss %s, fetching upstream", key)

	listing, err := fetch(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(listing)
	if err != nil {
		return err
	}

	// caching is an optimization, a store failure must not fail the read
	err = svc.store.Put(key, cache.KindMeta, "application/json", data)
	if err != nil {
		logger.WithError(err).Warnf("failed to cache listing %s", key)
	}

	return json.Unmarshal(data, out)
}

// ListEnrichedAlbums returns albums with resolved cover asset ids.
// Albums with no assets are filtered out unless includeEmpty is set;
// the second return value is the unfiltered count.
func (svc *MetadataService) ListEnrichedAlbums(ctx context.Context, includeEmpty bool) ([]*EnrichedAlbum, int, error) {
	logger := log.WithFields(log.Fields{
		"package":  "gallery",
		"struct":   "MetadataService",
		"function": "ListEnrichedAlbums",
	})

	albums, err := svc.GetAlbums(ctx, false)
	if err != nil {
		return nil, 0, err
	}

	enriched := []*EnrichedAlbum{}
	for _, album := range albums {
		coverAssetID := album.GetCoverAssetID()
		if coverAssetID == "" && album.AssetCount > 0 {
			// best-effort: the listing may omit assets, look at the full album
			full, err := svc.client.GetAlbum(ctx, album.ID)
			if err != nil {
				logger.WithError(err).Debugf("failed to resolve cover for album %s", album.ID)
			} else {
				coverAssetID = full.GetCoverAssetID()
			}
		}

		enriched = append(enriched, &EnrichedAlbum{
			ID:           album.ID,
			Name:         album.AlbumName,
			AssetCount:   album.AssetCount,
			CoverAssetID: coverAssetID,
		})
	}

	totalAll := len(enriched)
	if includeEmpty {
		return enriched, totalAll, nil
	}

	shown := []*EnrichedAlbum{}
	for _, album := range enriched {
		if album.AssetCount > 0 {
			shown = append(shown, album)
		}
	}
	return shown, totalAll, nil
}

// InvalidateAlbums removes the cached album listing,
// returning 1 if an entry was removed
func (svc *MetadataService) InvalidateAlbums() int {
	if svc.store.Delete(albumsListKey()) {
		return 1
	}
	return 0
}

// InvalidateAlbumAssets removes the cached asset listing of an album,
// returning 1 if an entry was removed
func (svc *MetadataService) InvalidateAlbumAssets(albumID string) int {
	if svc.store.Delete(albumAssetsKey(albumID)) {
		return 1
	}
	return 0
}
