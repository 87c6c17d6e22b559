package server

import (
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/galleriad/immich-cache/immich"
	"github.com/galleriad/immich-cache/utils"
)

// thumbnails are immutable for their cache key, let browsers keep them
const thumbCacheControl = "public, max-age=31536000, immutable"

// originals are private to the requesting viewer
const fullCacheControl = "private, max-age=31536000"

func parseFlag(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// assetView is the asset listing record served to the gallery UI
type assetView struct {
	ID               string `json:"id"`
	OriginalFileName string `json:"originalFileName"`
	FileCreatedAt    string `json:"fileCreatedAt"`
	Type             string `json:"type"`
	Description      string `json:"description,omitempty"`
}

func (server *Server) handleAlbums(c *fiber.Ctx) error {
	includeEmpty := parseFlag(c.Query("include_empty", "0"))

	albums, totalAll, err := server.metadata.ListEnrichedAlbums(c.UserContext(), includeEmpty)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
			"items": []interface{}{},
			"total": 0,
		})
	}

	return c.JSON(fiber.Map{
		"items": albums,
		"total": len(albums),
		"meta": fiber.Map{
			"include_empty": includeEmpty,
			"total_all":     totalAll,
			"hidden":        totalAll - len(albums),
		},
	})
}

func (server *Server) handleAlbumAssets(c *fiber.Ctx) error {
	albumID := c.Params("albumID")

	assets, err := server.metadata.GetAlbumAssets(c.UserContext(), albumID, false)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	items := make([]assetView, 0, len(assets))
	for _, asset := range assets {
		items = append(items, assetView{
			ID:               asset.ID,
			OriginalFileName: asset.OriginalFileName,
			FileCreatedAt:    utils.FormatDisplayTime(asset.FileCreatedAt),
			Type:             asset.Type,
			Description:      asset.GetDescription(),
		})
	}

	return c.JSON(fiber.Map{
		"items": items,
		"total": len(items),
	})
}

func (server *Server) handleThumb(c *fiber.Ctx) error {
	assetID := c.Params("assetID")
	size := c.Query("size", immich.SizePreview)

	data, contentType, err := server.thumbnails.FetchThumbnail(c.UserContext(), assetID, size)
	if err != nil {
		return thumbError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, thumbCacheControl)
	return c.Send(data)
}

func (server *Server) handleAlbumThumb(c *fiber.Ctx) error {
	albumID := c.Params("albumID")
	assetID := c.Params("assetID")
	size := c.Query("size", immich.SizePreview)

	data, contentType, err := server.thumbnails.FetchAlbumThumbnail(c.UserContext(), albumID, assetID, size)
	if err != nil {
		return thumbError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, thumbCacheControl)
	return c.Send(data)
}

func thumbError(c *fiber.Ctx, err error) error {
	status := fiber.StatusNotFound
	if immich.IsUnsupportedMediaError(err) {
		status = fiber.StatusUnsupportedMediaType
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (server *Server) handleFull(c *fiber.Ctx) error {
	assetID := c.Params("assetID")

	stream, contentType, length, err := server.client.OpenOriginal(c.UserContext(), assetID)
	if err != nil {
		// the lightbox falls back to the preview thumbnail on 404
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "original not available: " + err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, fullCacheControl)

	// lengths beyond the platform int would truncate, stream those unsized
	if length > 0 && length <= math.MaxInt {
		return c.SendStream(stream, int(length))
	}
	return c.SendStream(stream)
}

func (server *Server) handleCacheStats(c *fiber.Ctx) error {
	return c.JSON(server.admin.GetStats())
}

type clearThumbsRequest struct {
	Kind string `json:"kind"`
}

func (server *Server) handleClearThumbs(c *fiber.Ctx) error {
	request := clearThumbsRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	kind := strings.ToLower(strings.TrimSpace(request.Kind))

	removed, err := server.admin.ClearThumbs(kind)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"removed": removed,
		"kind":    kind,
	})
}

func (server *Server) handleClearMeta(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":      true,
		"removed": server.admin.ClearMeta(),
	})
}

func (server *Server) handleRefreshAlbums(c *fiber.Ctx) error {
	total, err := server.admin.RefreshAlbums(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"ok":    true,
		"total": total,
	})
}

type refreshAlbumAssetsRequest struct {
	AlbumID string `json:"album_id"`
}

func (server *Server) handleRefreshAlbumAssets(c *fiber.Ctx) error {
	request := refreshAlbumAssetsRequest{}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	albumID := strings.TrimSpace(request.AlbumID)
	if albumID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "album_id is required",
		})
	}

	total, err := server.admin.RefreshAlbumAssets(c.UserContext(), albumID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"ok":       true,
		"album_id": albumID,
		"total":    total,
	})
}
