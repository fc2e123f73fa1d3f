package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"streamfinder/config"
	"streamfinder/models"
	"streamfinder/sentryhelper"
)

var ErrDisabled = errors.New("spotify is not configured")

// Catalog reads track metadata from Spotify. It only ever produces TrackRefs;
// it never returns anything playable on its own.
type Catalog struct {
	client *spotifyclient.Client
}

// NewCatalog authenticates with the client credentials flow. The returned
// http client refreshes its token on its own.
func NewCatalog(ctx context.Context, clientID, clientSecret string) (*Catalog, error) {
	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("failed to authenticate with spotify: %w", err)
	}

	return NewCatalogWithClient(spotifyclient.New(creds.Client(ctx))), nil
}

func NewCatalogWithClient(client *spotifyclient.Client) *Catalog {
	return &Catalog{client: client}
}

func NewCatalogFromConfig(ctx context.Context) (*Catalog, error) {
	cfg := config.Config.Spotify
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	return NewCatalog(ctx, cfg.ClientID, cfg.ClientSecret)
}

// GetTrackRef fetches one track. Unknown or malformed ids are
// models.ErrNotFound.
func (c *Catalog) GetTrackRef(ctx context.Context, trackID string) (models.TrackRef, error) {
	logger := log.WithFields(log.Fields{"module": "spotify", "function": "GetTrackRef", "track_id": trackID})
	logger.Trace("fetching track from Spotify API")

	span := sentryhelper.StartSpan(ctx, "spotify.get_track")
	span.Description = "Get track from Spotify API"
	span.SetTag("track_id", trackID)
	defer span.Finish()

	track, err := c.client.GetTrack(span.Context(), spotifyclient.ID(trackID))
	if err != nil {
		var apiErr spotifyclient.Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest) {
			span.Status = sentry.SpanStatusNotFound
			logger.Debugf("track not found: %v", err)
			return models.TrackRef{}, fmt.Errorf("spotify track %s: %w", trackID, models.ErrNotFound)
		}

		logger.Errorf("failed to fetch Spotify track: %v", err)
		sentryhelper.CaptureException(ctx, err)
		span.Status = sentry.SpanStatusInternalError
		return models.TrackRef{}, fmt.Errorf("%w: %w", models.ErrCatalogUnavailable, err)
	}

	ref := TrackRefFromFullTrack(track)
	logger.Debugf("fetched Spotify track: '%s' by %s", ref.Title, ref.ArtistName)
	span.Status = sentry.SpanStatusOK
	return ref, nil
}

// TrackRefFromFullTrack maps a Spotify track to a TrackRef. Artists are joined
// with ", " and the first (largest) album image is used as the cover.
func TrackRefFromFullTrack(track *spotifyclient.FullTrack) models.TrackRef {
	if track == nil {
		return models.TrackRef{}
	}

	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		if artist.Name != "" {
			artists = append(artists, artist.Name)
		}
	}

	cover := ""
	if len(track.Album.Images) > 0 {
		cover = track.Album.Images[0].URL
	}

	return models.TrackRef{
		Title:             track.Name,
		ArtistName:        strings.Join(artists, ", "),
		PrimaryID:         string(track.ID),
		PrimaryPreviewURL: track.PreviewURL,
		DurationSeconds:   int(track.Duration) / 1000,
		CoverImageURL:     cover,
	}
}

// ParseTrackID accepts an open.spotify.com track link, a spotify:track: URI
// or a bare id.
func ParseTrackID(input string) (string, error) {
	input = strings.TrimSpace(input)

	switch {
	case strings.HasPrefix(input, "https://open.spotify.com/"):
		parts := strings.Split(strings.TrimPrefix(input, "https://open.spotify.com/"), "/")
		// Localized links look like /intl-de/track/<id>.
		if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
		if len(parts) < 2 || parts[0] != "track" {
			log.Warnf("Not a Spotify track URL: %s", input)
			return "", fmt.Errorf("%w: not a spotify track url", models.ErrInvalidInput)
		}
		// Strip query parameters from ID (e.g., ?si=tracking_id)
		input = strings.Split(parts[1], "?")[0]
	case strings.HasPrefix(input, "spotify:track:"):
		input = strings.TrimPrefix(input, "spotify:track:")
	case strings.Contains(input, ":") || strings.Contains(input, "/"):
		return "", fmt.Errorf("%w: not a spotify track reference", models.ErrInvalidInput)
	}

	if input == "" {
		return "", fmt.Errorf("%w: empty spotify track id", models.ErrInvalidInput)
	}
	return input, nil
}
