package gallery

import (
	"context"
	"strings"

	"github.com/galleriad/immich-cache/cache"
	"github.com/galleriad/immich-cache/immich"
	log "github.com/sirupsen/logrus"
)

// IsMediaContentType checks if the content type is image or video media
func IsMediaContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

// ThumbnailService serves rendered thumbnails through the TTL cache,
// falling back to the upstream client on a miss (cache-aside).
// Concurrent misses for the same key may fetch upstream more than once;
// failed fetches are never cached.
type ThumbnailService struct {
	store  *cache.TTLStore
	client immich.Client
}

// NewThumbnailService creates a new ThumbnailService
func NewThumbnailService(store *cache.TTLStore, client immich.Client) *ThumbnailService {
	return &ThumbnailService{
		store:  store,
		client: client,
	}
}

// FetchThumbnail returns thumbnail bytes and content type for an asset,
// cached under the image thumbnail kind
func (svc *ThumbnailService) FetchThumbnail(ctx context.Context, assetID string, size string) ([]byte, string, error) {
	return svc.fetch(ctx, cache.KindImageThumb, assetID, assetID, size)
}

// FetchAlbumThumbnail returns album cover thumbnail bytes and content type.
// The cache key is the album id; the payload comes from the cover asset,
// so a changed cover is picked up once the entry expires or is cleared.
func (svc *ThumbnailService) FetchAlbumThumbnail(ctx context.Context, albumID string, coverAssetID string, size string) ([]byte, string, error) {
	return svc.fetch(ctx, cache.KindAlbumThumb, albumID, coverAssetID, size)
}

func (svc *ThumbnailService) fetch(ctx context.Context, kind cache.Kind, entityID string, assetID string, size string) ([]byte, string, error) {
	logger := log.WithFields(log.Fields{
		"package":  "gallery",
		"struct":   "ThumbnailService",
		"function": "fetch",
	})

	key := cache.MakeKey(kind, entityID, size)

	if entry := svc.store.Get(key); entry != nil {
		data, err := entry.GetData()
		if err == nil {
			logger.Debugf("cache hit %s", key)
			return data, entry.GetContentType(), nil
		}

		// unreadable entry, drop it and refetch
		logger.WithError(err).Warnf("failed to read cached entry %s", key)
		svc.store.Delete(key)
	}

	logger.Debugf("cache miss %s, fetching upstream", key)

	data, contentType, err := svc.client.GetThumbnail(ctx, assetID, size)
	if err != nil {
		return nil, "", err
	}

	if !IsMediaContentType(contentType) {
		return nil, "", immich.NewUnsupportedMediaError(contentType)
	}

	// caching is an optimization, a store failure must not fail the read
	err = svc.store.Put(key, kind, contentType, data)
	if err != nil {
		logger.WithError(err).Warnf("failed to cache thumbnail %s", key)
	}

	return data, contentType, nil
}
