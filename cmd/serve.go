package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/galleriad/immich-cache/cache"
	"github.com/galleriad/immich-cache/commons/config"
	"github.com/galleriad/immich-cache/gallery"
	"github.com/galleriad/immich-cache/immich"
	"github.com/galleriad/immich-cache/prewarm"
	"github.com/galleriad/immich-cache/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gallery cache proxy over HTTP",
	Run:   serveServer,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides APP_HOST/APP_PORT)")
	serveCmd.Flags().Bool("memory", false, "keep the cache in memory instead of on disk")
	rootCmd.AddCommand(serveCmd)
}

func serveServer(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	if cfg.App.Debug {
		log.SetLevel(log.DebugLevel)
	}

	var store cache.Store
	if useMemory, _ := cmd.Flags().GetBool("memory"); useMemory {
		store, err = cache.NewMemoryStore(cfg.Cache.EntryCap)
	} else {
		store, err = cache.NewDiskStore(filepath.Join(cfg.Cache.DataDir, "cache"), cfg.Cache.EntryCap)
	}
	if err != nil {
		log.Fatalln(err)
	}

	ttlStore := cache.NewTTLStore(store, cfg.Cache.ThumbTTL, cfg.Cache.MetaTTL)

	client, err := immich.NewHTTPClient(cfg.Immich.BaseURL, cfg.Immich.APIKey, cfg.Immich.Timeout, cfg.Immich.RequestsPerSecond)
	if err != nil {
		log.Fatalln(err)
	}
	defer client.Release()

	thumbnails := gallery.NewThumbnailService(ttlStore, client)
	metadata := gallery.NewMetadataService(ttlStore, client)
	admin := gallery.NewAdmin(ttlStore, metadata)
	engine := prewarm.NewEngine(metadata, thumbnails)

	srv := server.New(thumbnails, metadata, admin, engine, client)

	address := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		address = listen
	}

	serveErrors := make(chan error, 1)
	go func() {
		log.Infof("serving gallery cache proxy on %s", address)
		serveErrors <- srv.Listen(address)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrors:
		if err != nil {
			log.Fatalln(err)
		}
	case sig := <-signals:
		log.Infof("received %s, shutting down", sig)
		if err := srv.Shutdown(); err != nil {
			log.WithError(err).Error("failed to shut down cleanly")
		}
	}
}
