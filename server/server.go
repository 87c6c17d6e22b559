package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/galleriad/immich-cache/gallery"
	"github.com/galleriad/immich-cache/immich"
	"github.com/galleriad/immich-cache/prewarm"
)

// Server is the HTTP transport adapter over the gallery cache core
type Server struct {
	app        *fiber.App
	thumbnails *gallery.ThumbnailService
	metadata   *gallery.MetadataService
	admin      *gallery.Admin
	engine     *prewarm.Engine
	client     immich.Client
}

// New creates a Server and registers its routes
func New(thumbnails *gallery.ThumbnailService, metadata *gallery.MetadataService, admin *gallery.Admin, engine *prewarm.Engine, client immich.Client) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Gallery Cache Proxy",
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(recover.New())

	server := &Server{
		app:        app,
		thumbnails: thumbnails,
		metadata:   metadata,
		admin:      admin,
		engine:     engine,
		client:     client,
	}

	server.registerRoutes()
	return server
}

func (server *Server) registerRoutes() {
	server.app.Get("/api/albums.json", server.handleAlbums)
	server.app.Get("/api/albums/:albumID/assets.json", server.handleAlbumAssets)
	server.app.Get("/api/albums/:albumID/prewarm", server.handlePrewarm)

	server.app.Get("/thumb/album/:albumID/:assetID", server.handleAlbumThumb)
	server.app.Get("/thumb/:assetID", server.handleThumb)
	server.app.Get("/full/:assetID", server.handleFull)

	server.app.Get("/api/cache/stats.json", server.handleCacheStats)
	server.app.Post("/api/cache/clear-thumbs.json", server.handleClearThumbs)
	server.app.Post("/api/cache/clear-meta.json", server.handleClearMeta)
	server.app.Post("/api/cache/refresh-albums.json", server.handleRefreshAlbums)
	server.app.Post("/api/cache/refresh-album-assets.json", server.handleRefreshAlbumAssets)
}

// App returns the underlying fiber app, used by tests
func (server *Server) App() *fiber.App {
	return server.app
}

// Listen serves HTTP on the given address until Shutdown
func (server *Server) Listen(address string) error {
	return server.app.Listen(address)
}

// Shutdown gracefully stops the server
func (server *Server) Shutdown() error {
	return server.app.Shutdown()
}
