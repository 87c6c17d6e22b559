package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "immich-cache",
	Short: "Caching proxy between a gallery UI and an Immich photo server",
	Long:  "Serves thumbnails and album metadata from a TTL cache, warms the cache on demand and streams warm-up progress to the browser.",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}
