package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/galleriad/immich-cache/cache"
	"github.com/galleriad/immich-cache/gallery"
	"github.com/galleriad/immich-cache/immich"
	"github.com/galleriad/immich-cache/prewarm"
)

func TestServer(t *testing.T) {
	t.Run("test Albums", testHandleAlbums)
	t.Run("test AlbumAssets", testHandleAlbumAssets)
	t.Run("test Thumb", testHandleThumb)
	t.Run("test ThumbNotFound", testHandleThumbNotFound)
	t.Run("test Full", testHandleFull)
	t.Run("test CacheStats", testHandleCacheStats)
	t.Run("test ClearThumbs", testHandleClearThumbs)
	t.Run("test ClearMeta", testHandleClearMeta)
	t.Run("test RefreshAlbumAssets", testHandleRefreshAlbumAssets)
}

func newTestServer(t *testing.T) (*Server, *immich.ClientDummy) {
	store, err := cache.NewMemoryStore(1000)
	assert.NoError(t, err)

	tstore := cache.NewTTLStore(store, time.Hour, time.Minute)
	client := immich.NewClientDummy()
	metadata := gallery.NewMetadataService(tstore, client)
	thumbnails := gallery.NewThumbnailService(tstore, client)
	admin := gallery.NewAdmin(tstore, metadata)
	engine := prewarm.NewEngine(metadata, thumbnails)

	return New(thumbnails, metadata, admin, engine, client), client
}

func doRequest(t *testing.T, server *Server, method string, target string, body interface{}) (*http.Response, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, target, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := server.App().Test(request, -1)
	assert.NoError(t, err)

	document := map[string]interface{}{}
	raw, err := io.ReadAll(response.Body)
	assert.NoError(t, err)
	response.Body.Close()

	if json.Valid(raw) {
		assert.NoError(t, json.Unmarshal(raw, &document))
	}
	return response, document
}

func testHandleAlbums(t *testing.T) {
	server, client := newTestServer(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip", AlbumThumbnailAssetID: "p1"}, []*immich.Asset{{ID: "p1"}, {ID: "p2"}})
	client.AddAlbum(&immich.Album{ID: "A2", AlbumName: "Empty"}, []*immich.Asset{})

	response, document := doRequest(t, server, http.MethodGet, "/api/albums.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(1), document["total"])

	meta := document["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total_all"])
	assert.Equal(t, float64(1), meta["hidden"])

	// empty albums come back when asked for
	response, document = doRequest(t, server, http.MethodGet, "/api/albums.json?include_empty=1", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(2), document["total"])
}

func testHandleAlbumAssets(t *testing.T) {
	server, client := newTestServer(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{
		{ID: "p1", OriginalFileName: "beach.jpg", Type: "IMAGE", FileCreatedAt: "2024-06-01T10:30:00.000Z"},
	})

	response, document := doRequest(t, server, http.MethodGet, "/api/albums/A1/assets.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(1), document["total"])

	items := document["items"].([]interface{})
	item := items[0].(map[string]interface{})
	assert.Equal(t, "p1", item["id"])
	assert.Equal(t, "beach.jpg", item["originalFileName"])
	assert.Equal(t, "2024-06-01 10:30:00", item["fileCreatedAt"])

	response, _ = doRequest(t, server, http.MethodGet, "/api/albums/missing/assets.json", nil)
	assert.Equal(t, http.StatusBadGateway, response.StatusCode)
}

func testHandleThumb(t *testing.T) {
	server, client := newTestServer(t)

	client.SetThumbnail("p1", []byte("jpeg-bytes"), "image/jpeg")

	request := httptest.NewRequest(http.MethodGet, "/thumb/p1?size=thumbnail", nil)
	response, err := server.App().Test(request, -1)
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "image/jpeg", response.Header.Get("Content-Type"))
	assert.Equal(t, thumbCacheControl, response.Header.Get("Cache-Control"))

	body, err := io.ReadAll(response.Body)
	assert.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, []byte("jpeg-bytes"), body)

	// second request is served from cache
	request = httptest.NewRequest(http.MethodGet, "/thumb/p1?size=thumbnail", nil)
	response, err = server.App().Test(request, -1)
	assert.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, 1, client.GetThumbnailHits("p1"))
}

func testHandleThumbNotFound(t *testing.T) {
	server, client := newTestServer(t)

	response, _ := doRequest(t, server, http.MethodGet, "/thumb/missing", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	client.SetThumbnail("page", []byte("<html>"), "text/html")
	response, _ = doRequest(t, server, http.MethodGet, "/thumb/page", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, response.StatusCode)
}

func testHandleFull(t *testing.T) {
	server, client := newTestServer(t)

	client.SetThumbnail("p1", []byte("original-bytes"), "image/jpeg")

	request := httptest.NewRequest(http.MethodGet, "/full/p1", nil)
	response, err := server.App().Test(request, -1)
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, fullCacheControl, response.Header.Get("Cache-Control"))

	body, err := io.ReadAll(response.Body)
	assert.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, []byte("original-bytes"), body)

	response, _ = doRequest(t, server, http.MethodGet, "/full/missing", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	// unknown upstream length falls through to unsized streaming
	client.HideOriginalLength()
	request = httptest.NewRequest(http.MethodGet, "/full/p1", nil)
	response, err = server.App().Test(request, -1)
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	body, err = io.ReadAll(response.Body)
	assert.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, []byte("original-bytes"), body)
}

func testHandleCacheStats(t *testing.T) {
	server, client := newTestServer(t)

	client.SetThumbnail("p1", []byte("jpeg-bytes"), "image/jpeg")
	response, _ := doRequest(t, server, http.MethodGet, "/thumb/p1", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, document := doRequest(t, server, http.MethodGet, "/api/cache/stats.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	thumbs := document["thumbs"].(map[string]interface{})
	assert.Equal(t, float64(1), thumbs["total_files"])
	assert.NotEmpty(t, thumbs["total_human"])

	ttl := document["ttl"].(map[string]interface{})
	assert.Equal(t, float64(3600), ttl["thumbs"])
	assert.Equal(t, float64(60), ttl["meta"])
}

func testHandleClearThumbs(t *testing.T) {
	server, client := newTestServer(t)

	client.SetThumbnail("p1", []byte("jpeg-bytes"), "image/jpeg")
	response, _ := doRequest(t, server, http.MethodGet, "/thumb/p1", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, document := doRequest(t, server, http.MethodPost, "/api/cache/clear-thumbs.json", map[string]string{"kind": "images"})
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, true, document["ok"])
	assert.Equal(t, float64(1), document["removed"])

	// unknown kind is rejected
	response, _ = doRequest(t, server, http.MethodPost, "/api/cache/clear-thumbs.json", map[string]string{"kind": "everything"})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	// no body clears both thumbnail kinds
	response, document = doRequest(t, server, http.MethodPost, "/api/cache/clear-thumbs.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(0), document["removed"])
}

func testHandleClearMeta(t *testing.T) {
	server, client := newTestServer(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "p1"}})

	response, _ := doRequest(t, server, http.MethodGet, "/api/albums/A1/assets.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response, document := doRequest(t, server, http.MethodPost, "/api/cache/clear-meta.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(1), document["removed"])

	response, document = doRequest(t, server, http.MethodPost, "/api/cache/clear-meta.json", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(0), document["removed"])
}

func testHandleRefreshAlbumAssets(t *testing.T) {
	server, client := newTestServer(t)

	client.AddAlbum(&immich.Album{ID: "A1", AlbumName: "Trip"}, []*immich.Asset{{ID: "p1"}, {ID: "p2"}})

	response, document := doRequest(t, server, http.MethodPost, "/api/cache/refresh-album-assets.json", map[string]string{"album_id": "A1"})
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, float64(2), document["total"])

	response, _ = doRequest(t, server, http.MethodPost, "/api/cache/refresh-album-assets.json", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, _ = doRequest(t, server, http.MethodPost, "/api/cache/refresh-album-assets.json", map[string]string{"album_id": "missing"})
	assert.Equal(t, http.StatusBadGateway, response.StatusCode)
}
