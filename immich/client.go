package immich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/galleriad/immich-cache/utils"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/xerrors"
)

const (
	apiKeyHeader       = "x-api-key"
	defaultContentType = "application/octet-stream"
)

// HTTPClient implements Client interface against the photo server REST API
// implements interfaces defined in interface.go
type HTTPClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client // no body deadline, original downloads can be large
	limiter      ratelimit.Limiter
}

// NewHTTPClient creates a Client using HTTPClient
func NewHTTPClient(baseURL string, apiKey string, timeout time.Duration, requestsPerSecond int) (Client, error) {
	logger := log.WithFields(log.Fields{
		"package":  "immich",
		"function": "NewHTTPClient",
	})

	defer utils.StackTraceFromPanic(logger)

	if baseURL == "" || apiKey == "" {
		return nil, xerrors.Errorf("base URL and API key must be set")
	}

	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: timeout,
			},
		},
		limiter: ratelimit.New(requestsPerSecond),
	}, nil
}

// Release releases resources
func (client *HTTPClient) Release() {
	client.httpClient.CloseIdleConnections()
	client.streamClient.CloseIdleConnections()
}

// doGet performs a rate-limited GET against the photo server.
// A returned response must be closed by the caller.
func (client *HTTPClient) doGet(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return client.doGetWith(ctx, client.httpClient, path, query)
}

func (client *HTTPClient) doGetWith(ctx context.Context, httpClient *http.Client, path string, query url.Values) (*http.Response, error) {
	client.limiter.Take()

	requestURL := client.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to build request for %s: %w", path, err)
	}

	request.Header.Set(apiKeyHeader, client.apiKey)

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, NewUpstreamError(0, err.Error())
	}

	if response.StatusCode == http.StatusNotFound {
		response.Body.Close()
		return nil, NewNotFoundError(path)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		response.Body.Close()
		return nil, NewUpstreamError(response.StatusCode, strings.TrimSpace(string(body)))
	}

	return response, nil
}

// getJSON performs a GET and decodes the JSON response body into out
func (client *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	response, err := client.doGet(ctx, path, query)
	if err != nil {
		return err
	}

	defer response.Body.Close()

	err = json.NewDecoder(response.Body).Decode(out)
	if err != nil {
		return xerrors.Errorf("failed to decode response for %s: %w", path, err)
	}

	return nil
}

// ListAlbums lists all albums
func (client *HTTPClient) ListAlbums(ctx context.Context) ([]*Album, error) {
	logger := log.WithFields(log.Fields{
		"package":  "immich",
		"struct":   "HTTPClient",
		"function": "ListAlbums",
	})

	defer utils.StackTraceFromPanic(logger)

	albums := []*Album{}
	err := client.getJSON(ctx, "/api/albums", nil, &albums)
	if err != nil {
		logger.WithError(err).Error("failed to list albums")
		return nil, err
	}

	return albums, nil
}

// GetAlbum returns an album with its assets
func (client *HTTPClient) GetAlbum(ctx context.Context, albumID string) (*Album, error) {
	logger := log.WithFields(log.Fields{
		"package":  "immich",
		"struct":   "HTTPClient",
		"function": "GetAlbum",
	})

	defer utils.StackTraceFromPanic(logger)

	album := &Album{}
	err := client.getJSON(ctx, fmt.Sprintf("/api/albums/%s", url.PathEscape(albumID)), nil, album)
	if err != nil {
		logger.WithError(err).Errorf("failed to get album %s", albumID)
		return nil, err
	}

	return album, nil
}

// ListAlbumAssets returns all asset records of an album
func (client *HTTPClient) ListAlbumAssets(ctx context.Context, albumID string) ([]*Asset, error) {
	album, err := client.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}

	if album.Assets == nil {
		return []*Asset{}, nil
	}

	return album.Assets, nil
}

// GetAsset returns a single asset record
func (client *HTTPClient) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	logger := log.WithFields(log.Fields{
		"package":  "immich",
		"struct":   "HTTPClient",
		"function": "GetAsset",
	})

	defer utils.StackTraceFromPanic(logger)

	asset := &Asset{}
	err := client.getJSON(ctx, fmt.Sprintf("/api/assets/%s", url.PathEscape(assetID)), nil, asset)
	if err != nil {
		logger.WithError(err).Errorf("failed to get asset %s", assetID)
		return nil, err
	}

	return asset, nil
}

// GetThumbnail returns thumbnail bytes and content type for an asset
func (client *HTTPClient) GetThumbnail(ctx context.Context, assetID string, size string) ([]byte, string, error) {
	logger := log.WithFields(log.Fields{
		"package":  "immich",
		"struct":   "HTTPClient",
		"function": "GetThumbnail",
	})

	defer utils.StackTraceFromPanic(logger)

	query := url.Values{}
	query.Set("size", size)

	response, err := client.doGet(ctx, fmt.Sprintf("/api/assets/%s/thumbnail", url.PathEscape(assetID)), query)
	if err != nil {
		logger.WithError(err).Errorf("failed to get thumbnail for asset %s", assetID)
		return nil, "", err
	}

	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, "", NewUpstreamError(0, err.Error())
	}

	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return data, contentType, nil
}

// OpenOriginal opens a stream of the original full-resolution bytes of an asset.
// The returned reader must be closed by the caller.
func (client *HTTPClient) OpenOriginal(ctx context.Context, assetID string) (io.ReadCloser, string, int64, error) {
	logger := log.WithFields(log.Fields{
		"package":  "immich",
		"struct":   "HTTPClient",
		"function": "OpenOriginal",
	})

	defer utils.StackTraceFromPanic(logger)

	response, err := client.doGetWith(ctx, client.streamClient, fmt.Sprintf("/api/assets/%s/original", url.PathEscape(assetID)), nil)
	if err != nil {
		logger.WithError(err).Errorf("failed to open original for asset %s", assetID)
		return nil, "", 0, err
	}

	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return response.Body, contentType, response.ContentLength, nil
}
