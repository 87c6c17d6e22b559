package immich

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// ClientDummy implements Client interface with in-memory data,
// used to test the cache and prewarm layers without a photo server
// implements interfaces defined in interface.go
type ClientDummy struct {
	albums        map[string]*Album
	albumOrder    []string
	thumbnails    map[string][]byte
	contentTypes  map[string]string
	failThumbs    map[string]bool
	failAlbums    map[string]bool
	thumbnailLag  time.Duration
	unsizedOrig   bool
	thumbnailHits map[string]int
	albumHits     int
	mutex         sync.Mutex
}

// NewClientDummy creates a Client with dummy data
func NewClientDummy() *ClientDummy {
	return &ClientDummy{
		albums:        map[string]*Album{},
		albumOrder:    []string{},
		thumbnails:    map[string][]byte{},
		contentTypes:  map[string]string{},
		failThumbs:    map[string]bool{},
		failAlbums:    map[string]bool{},
		thumbnailHits: map[string]int{},
	}
}

// Release releases resources
func (client *ClientDummy) Release() {
}

// AddAlbum registers an album and its assets
func (client *ClientDummy) AddAlbum(album *Album, assets []*Asset) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	album.Assets = assets
	album.AssetCount = len(assets)
	client.albums[album.ID] = album
	client.albumOrder = append(client.albumOrder, album.ID)

	for _, asset := range assets {
		if _, ok := client.thumbnails[asset.ID]; !ok {
			client.thumbnails[asset.ID] = []byte("thumb-" + asset.ID)
			client.contentTypes[asset.ID] = "image/jpeg"
		}
	}
}

// SetThumbnail sets thumbnail bytes and content type for an asset
func (client *ClientDummy) SetThumbnail(assetID string, data []byte, contentType string) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.thumbnails[assetID] = data
	client.contentTypes[assetID] = contentType
}

// FailThumbnail makes thumbnail fetches for an asset fail
func (client *ClientDummy) FailThumbnail(assetID string) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.failThumbs[assetID] = true
}

// FailAlbum makes album lookups for an album fail
func (client *ClientDummy) FailAlbum(albumID string) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.failAlbums[albumID] = true
}

// HideOriginalLength makes OpenOriginal report an unknown content length
func (client *ClientDummy) HideOriginalLength() {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.unsizedOrig = true
}

// SetThumbnailLag delays every thumbnail fetch, to widen race windows in tests
func (client *ClientDummy) SetThumbnailLag(lag time.Duration) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.thumbnailLag = lag
}

// GetThumbnailHits returns how many thumbnail fetches were made for an asset
func (client *ClientDummy) GetThumbnailHits(assetID string) int {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	return client.thumbnailHits[assetID]
}

// GetAlbumHits returns how many album listing/lookup calls were made
func (client *ClientDummy) GetAlbumHits() int {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	return client.albumHits
}

// ListAlbums lists all albums
func (client *ClientDummy) ListAlbums(ctx context.Context) ([]*Album, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.albumHits++

	albums := []*Album{}
	for _, albumID := range client.albumOrder {
		albums = append(albums, client.albums[albumID])
	}
	return albums, nil
}

// GetAlbum returns an album with its assets
func (client *ClientDummy) GetAlbum(ctx context.Context, albumID string) (*Album, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.albumHits++

	if client.failAlbums[albumID] {
		return nil, NewUpstreamError(503, "album service unavailable")
	}

	album, ok := client.albums[albumID]
	if !ok {
		return nil, NewNotFoundError(albumID)
	}
	return album, nil
}

// ListAlbumAssets returns all asset records of an album
func (client *ClientDummy) ListAlbumAssets(ctx context.Context, albumID string) ([]*Asset, error) {
	album, err := client.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return album.Assets, nil
}

// GetAsset returns a single asset record
func (client *ClientDummy) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	for _, album := range client.albums {
		for _, asset := range album.Assets {
			if asset.ID == assetID {
				return asset, nil
			}
		}
	}
	return nil, NewNotFoundError(assetID)
}

// GetThumbnail returns thumbnail bytes and content type for an asset
func (client *ClientDummy) GetThumbnail(ctx context.Context, assetID string, size string) ([]byte, string, error) {
	client.mutex.Lock()
	client.thumbnailHits[assetID]++
	lag := client.thumbnailLag
	failed := client.failThumbs[assetID]
	data, ok := client.thumbnails[assetID]
	contentType := client.contentTypes[assetID]
	client.mutex.Unlock()

	if lag > 0 {
		time.Sleep(lag)
	}

	if failed {
		return nil, "", NewUpstreamError(500, "thumbnail generation failed")
	}
	if !ok {
		return nil, "", NewNotFoundError(assetID)
	}

	return data, contentType, nil
}

// OpenOriginal opens a stream of the original full-resolution bytes of an asset
func (client *ClientDummy) OpenOriginal(ctx context.Context, assetID string) (io.ReadCloser, string, int64, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	data, ok := client.thumbnails[assetID]
	if !ok {
		return nil, "", 0, NewNotFoundError(assetID)
	}

	length := int64(len(data))
	if client.unsizedOrig {
		length = -1
	}

	return io.NopCloser(bytes.NewReader(data)), client.contentTypes[assetID], length, nil
}
