package immich

import (
	"context"
	"io"
)

// thumbnail size variants understood by the photo server
const (
	SizeThumbnail string = "thumbnail"
	SizePreview   string = "preview"
)

// Asset is an asset record returned by the photo server
type Asset struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OriginalFileName string    `json:"originalFileName"`
	FileCreatedAt    string    `json:"fileCreatedAt"`
	FileModifiedAt   string    `json:"fileModifiedAt,omitempty"`
	Duration         string    `json:"duration,omitempty"`
	Description      string    `json:"description,omitempty"`
	ExifInfo         *ExifInfo `json:"exifInfo,omitempty"`
}

// ExifInfo is the EXIF block embedded in an asset record
type ExifInfo struct {
	Make        string `json:"make,omitempty"`
	Model       string `json:"model,omitempty"`
	Description string `json:"description,omitempty"`
}

// GetDescription returns the asset description, falling back to the EXIF description
func (asset *Asset) GetDescription() string {
	if asset.Description != "" {
		return asset.Description
	}
	if asset.ExifInfo != nil {
		return asset.ExifInfo.Description
	}
	return ""
}

// Album is an album record returned by the photo server
type Album struct {
	ID                    string   `json:"id"`
	AlbumName             string   `json:"albumName"`
	AssetCount            int      `json:"assetCount"`
	AlbumThumbnailAssetID string   `json:"albumThumbnailAssetId,omitempty"`
	Assets                []*Asset `json:"assets,omitempty"`
}

// GetCoverAssetID returns the asset id to use as the album cover,
// falling back to the first asset when the server did not pick one
func (album *Album) GetCoverAssetID() string {
	if album.AlbumThumbnailAssetID != "" {
		return album.AlbumThumbnailAssetID
	}
	if len(album.Assets) > 0 {
		return album.Assets[0].ID
	}
	return ""
}

// Client is a client interface to the upstream photo server.
// It is the only component allowed to make outbound calls.
type Client interface {
	Release()

	// API
	ListAlbums(ctx context.Context) ([]*Album, error)
	GetAlbum(ctx context.Context, albumID string) (*Album, error)
	ListAlbumAssets(ctx context.Context, albumID string) ([]*Asset, error)
	GetAsset(ctx context.Context, assetID string) (*Asset, error)
	GetThumbnail(ctx context.Context, assetID string, size string) ([]byte, string, error)
	OpenOriginal(ctx context.Context, assetID string) (io.ReadCloser, string, int64, error)
}
