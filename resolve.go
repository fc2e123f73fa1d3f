package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"streamfinder/jamendo"
	"streamfinder/metrics"
	"streamfinder/models"
	"streamfinder/resolver"
	"streamfinder/spotify"
)

var resolveFlags struct {
	title   string
	artist  string
	preview string
	spotify string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one track and print the result as JSON",
	Example: `  streamfinder resolve --title "Midnight City" --artist M83
  streamfinder resolve --spotify https://open.spotify.com/track/6GyFP1nfCDB8lbD2bG0Hq9`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.title, "title", "", "track title")
	resolveCmd.Flags().StringVar(&resolveFlags.artist, "artist", "", "artist name")
	resolveCmd.Flags().StringVar(&resolveFlags.preview, "preview", "", "preview URL to fall back to")
	resolveCmd.Flags().StringVar(&resolveFlags.spotify, "spotify", "", "Spotify track URL, URI or id to resolve instead of --title")
	resolveCmd.MarkFlagsMutuallyExclusive("title", "spotify")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var track models.TrackRef
	if resolveFlags.spotify != "" {
		trackID, err := spotify.ParseTrackID(resolveFlags.spotify)
		if err != nil {
			return err
		}
		catalog, err := spotify.NewCatalogFromConfig(ctx)
		if err != nil {
			return err
		}
		if track, err = catalog.GetTrackRef(ctx, trackID); err != nil {
			return err
		}
	} else {
		if strings.TrimSpace(resolveFlags.title) == "" {
			return errors.New("--title or --spotify is required")
		}
		track = models.TrackRef{
			Title:             resolveFlags.title,
			ArtistName:        resolveFlags.artist,
			PrimaryPreviewURL: resolveFlags.preview,
		}
	}

	m := metrics.New()
	source := resolver.NewFromConfig(jamendo.NewFromConfig(m), m).Resolve(ctx, track)

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(source)
}
