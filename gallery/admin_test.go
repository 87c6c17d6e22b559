package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/galleriad/immich-cache/cache"
	"github.com/galleriad/immich-cache/immich"
)

func TestAdmin(t *testing.T) {
	t.Run("test Stats", testAdminStats)
	t.Run("test ClearThumbsScoped", testClearThumbsScoped)
	t.Run("test ClearThumbsInvalidKind", testClearThumbsInvalidKind)
	t.Run("test ClearMeta", testClearMeta)
	t.Run("test RefreshAlbums", testRefreshAlbums)
}

func newTestAdmin(t *testing.T) (*Admin, *ThumbnailService, *immich.ClientDummy, *cache.TTLStore) {
	store, err := cache.NewMemoryStore(1000)
	assert.NoError(t, err)

	tstore := cache.NewTTLStore(store, time.Hour, time.Minute)
	client := immich.NewClientDummy()
	metadata := NewMetadataService(tstore, client)
	thumbnails := NewThumbnailService(tstore, client)
	return NewAdmin(tstore, metadata), thumbnails, client, tstore
}

func fillThumbs(t *testing.T, thumbnails *ThumbnailService, client *immich.ClientDummy) {
	for _, albumID := range []string{"b1", "b2"} {
		client.SetThumbnail("cover-"+albumID, []byte("cover-bytes"), "image/jpeg")
		_, _, err := thumbnails.FetchAlbumThumbnail(context.Background(), albumID, "cover-"+albumID, "preview")
		assert.NoError(t, err)
	}
	for _, assetID := range []string{"a1", "a2", "a3"} {
		client.SetThumbnail(assetID, []byte("image-bytes"), "image/jpeg")
		_, _, err := thumbnails.FetchThumbnail(context.Background(), assetID, "preview")
		assert.NoError(t, err)
	}
}

func testAdminStats(t *testing.T) {
	admin, thumbnails, client, _ := newTestAdmin(t)

	fillThumbs(t, thumbnails, client)

	stats := admin.GetStats()
	assert.Equal(t, 5, stats.Thumbs.TotalFiles)
	assert.Equal(t, 2, stats.Thumbs.Albums.Files)
	assert.Equal(t, 3, stats.Thumbs.Images.Files)
	assert.Equal(t, stats.Thumbs.Albums.Bytes+stats.Thumbs.Images.Bytes, stats.Thumbs.TotalBytes)
	assert.NotEmpty(t, stats.Thumbs.TotalHuman)
	assert.Equal(t, 0, stats.Meta.Files)
	assert.Equal(t, int64(3600), stats.TTL.Thumbs)
	assert.Equal(t, int64(60), stats.TTL.Meta)
}

func testClearThumbsScoped(t *testing.T) {
	admin, thumbnails, client, _ := newTestAdmin(t)

	fillThumbs(t, thumbnails, client)

	// clearing album thumbnails leaves image thumbnails intact
	removed, err := admin.ClearThumbs("albums")
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats := admin.GetStats()
	assert.Equal(t, 0, stats.Thumbs.Albums.Files)
	assert.Equal(t, 3, stats.Thumbs.Images.Files)

	// unscoped clear removes the rest, twice in a row is fine
	removed, err = admin.ClearThumbs("")
	assert.NoError(t, err)
	assert.Equal(t, 3, removed)

	removed, err = admin.ClearThumbs("")
	assert.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func testClearThumbsInvalidKind(t *testing.T) {
	admin, _, _, _ := newTestAdmin(t)

	_, err := admin.ClearThumbs("meta")
	assert.Error(t, err)

	_, err = admin.ClearThumbs("everything")
	assert.Error(t, err)
}

func testClearMeta(t *testing.T) {
	admin, _, client, tstore := newTestAdmin(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "x1"}})

	metadata := NewMetadataService(tstore, client)
	_, err := metadata.GetAlbums(context.Background(), false)
	assert.NoError(t, err)
	_, err = metadata.GetAlbumAssets(context.Background(), "A1", false)
	assert.NoError(t, err)

	assert.Equal(t, 2, admin.ClearMeta())
	assert.Equal(t, 0, admin.ClearMeta())
}

func testRefreshAlbums(t *testing.T) {
	admin, _, client, _ := newTestAdmin(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "x1"}, {ID: "x2"}})
	client.AddAlbum(&immich.Album{ID: "A2", AlbumName: "Other"}, []*immich.Asset{{ID: "y1"}})

	total, err := admin.RefreshAlbums(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = admin.RefreshAlbumAssets(context.Background(), "A1")
	assert.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = admin.RefreshAlbumAssets(context.Background(), "missing")
	assert.Error(t, err)
}
