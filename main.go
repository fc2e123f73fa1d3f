package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"streamfinder/config"
	"streamfinder/logging"
	"streamfinder/sentry"
)

var rootCmd = &cobra.Command{
	Use:   "streamfinder",
	Short: "Resolve catalog tracks to playable audio streams",
	Long: `streamfinder finds full-length, freely streamable audio for tracks known from a
metadata catalog, falling back to the catalog's own preview clip when no match exists.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setup()
	},
	RunE: runServe,
}

func main() {
	defer sentry.Flush()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, resolveCmd)
}

func setup() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
	config.NewConfig()
	logging.Setup(config.Config.Options.LogLevel)
	sentry.Init()
}
