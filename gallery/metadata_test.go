package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/galleriad/immich-cache/cache"
	"github.com/galleriad/immich-cache/immich"
)

func TestMetadataService(t *testing.T) {
	t.Run("test AlbumsCacheAside", testAlbumsCacheAside)
	t.Run("test AlbumAssetsCacheAside", testAlbumAssetsCacheAside)
	t.Run("test ForceRefresh", testForceRefresh)
	t.Run("test EnrichedAlbums", testEnrichedAlbums)
	t.Run("test Invalidate", testMetadataInvalidate)
}

func newTestMetadataService(t *testing.T) (*MetadataService, *immich.ClientDummy, *cache.TTLStore) {
	store, err := cache.NewMemoryStore(1000)
	assert.NoError(t, err)

	tstore := cache.NewTTLStore(store, time.Hour, time.Hour)
	client := immich.NewClientDummy()
	return NewMetadataService(tstore, client), client, tstore
}

func testAlbumsCacheAside(t *testing.T) {
	svc, client, _ := newTestMetadataService(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "x1"}})

	albums, err := svc.GetAlbums(context.Background(), false)
	assert.NoError(t, err)
	assert.Len(t, albums, 1)
	assert.Equal(t, "Trip", albums[0].AlbumName)

	hits := client.GetAlbumHits()

	// second read served from cache
	albums, err = svc.GetAlbums(context.Background(), false)
	assert.NoError(t, err)
	assert.Len(t, albums, 1)
	assert.Equal(t, hits, client.GetAlbumHits())
}

func testAlbumAssetsCacheAside(t *testing.T) {
	svc, client, _ := newTestMetadataService(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{
		{ID: "x1", OriginalFileName: "one.jpg"},
		{ID: "x2", OriginalFileName: "two.jpg"},
	})

	assets, err := svc.GetAlbumAssets(context.Background(), "A1", false)
	assert.NoError(t, err)
	assert.Len(t, assets, 2)

	hits := client.GetAlbumHits()

	assets, err = svc.GetAlbumAssets(context.Background(), "A1", false)
	assert.NoError(t, err)
	assert.Len(t, assets, 2)
	assert.Equal(t, "one.jpg", assets[0].OriginalFileName)
	assert.Equal(t, hits, client.GetAlbumHits())

	// upstream failures surface, nothing is negatively cached
	_, err = svc.GetAlbumAssets(context.Background(), "missing", false)
	assert.Error(t, err)
	assert.True(t, immich.IsNotFoundError(err))
}

func testForceRefresh(t *testing.T) {
	svc, client, _ := newTestMetadataService(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "x1"}})

	_, err := svc.GetAlbums(context.Background(), false)
	assert.NoError(t, err)

	hits := client.GetAlbumHits()

	// force skips the fresh cache entry and overwrites it
	albums, err := svc.GetAlbums(context.Background(), true)
	assert.NoError(t, err)
	assert.Len(t, albums, 1)
	assert.Greater(t, client.GetAlbumHits(), hits)
}

func testEnrichedAlbums(t *testing.T) {
	svc, client, _ := newTestMetadataService(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip", AlbumThumbnailAssetID: "x1"}, []*immich.Asset{{ID: "x1"}})
	client.AddAlbum(&immich.Album{ID: "A2", AlbumName: "Empty"}, []*immich.Asset{})

	shown, totalAll, err := svc.ListEnrichedAlbums(context.Background(), false)
	assert.NoError(t, err)
	assert.Equal(t, 2, totalAll)
	assert.Len(t, shown, 1)
	assert.Equal(t, "A1", shown[0].ID)
	assert.Equal(t, "x1", shown[0].CoverAssetID)

	all, totalAll, err := svc.ListEnrichedAlbums(context.Background(), true)
	assert.NoError(t, err)
	assert.Equal(t, 2, totalAll)
	assert.Len(t, all, 2)
}

func testMetadataInvalidate(t *testing.T) {
	svc, client, _ := newTestMetadataService(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "x1"}})

	_, err := svc.GetAlbums(context.Background(), false)
	assert.NoError(t, err)
	_, err = svc.GetAlbumAssets(context.Background(), "A1", false)
	assert.NoError(t, err)

	assert.Equal(t, 1, svc.InvalidateAlbums())
	assert.Equal(t, 0, svc.InvalidateAlbums())

	assert.Equal(t, 1, svc.InvalidateAlbumAssets("A1"))
	assert.Equal(t, 0, svc.InvalidateAlbumAssets("A1"))
}
