package models

import (
	"encoding/json"
	"strings"
)

type Provider string

const (
	ProviderSecondary Provider = "secondary"
	ProviderPrimary   Provider = "primary"
	ProviderNone      Provider = "none"
)

// TrackRef describes a track as the primary catalog knows it.
type TrackRef struct {
	Title             string `json:"title" binding:"required"`
	ArtistName        string `json:"artistName" binding:"required"`
	PrimaryID         string `json:"primaryId,omitempty"`
	PrimaryPreviewURL string `json:"primaryPreviewUrl,omitempty"`
	DurationSeconds   int    `json:"durationSeconds,omitempty" binding:"gte=0"`
	CoverImageURL     string `json:"coverImageUrl,omitempty"`
}

// SearchQuery is the free-text query sent to the secondary catalog.
func (t TrackRef) SearchQuery() string {
	return strings.TrimSpace(t.Title + " " + t.ArtistName)
}

// Candidate is one secondary catalog search hit.
type Candidate struct {
	SecondaryID      string `json:"id"`
	Name             string `json:"name"`
	ArtistName       string `json:"artist_name"`
	AlbumName        string `json:"album_name,omitempty"`
	RawAudioURL      string `json:"audio"`
	AudioDownloadURL string `json:"audiodownload,omitempty"`
	CoverImageURL    string `json:"image"`
	ShareURL         string `json:"shareurl,omitempty"`
	DurationSeconds  int    `json:"duration"`
}

// Usable reports whether the candidate can be played at all.
func (c Candidate) Usable() bool {
	return strings.TrimSpace(c.SecondaryID) != "" && strings.TrimSpace(c.RawAudioURL) != ""
}

type ResolvedSource struct {
	SourceProvider  Provider `json:"sourceProvider"`
	StreamURL       string   `json:"streamUrl,omitempty"`
	SecondaryID     string   `json:"secondaryId,omitempty"`
	Title           string   `json:"title"`
	ArtistName      string   `json:"artistName"`
	CoverImageURL   string   `json:"coverImageUrl,omitempty"`
	DurationSeconds int      `json:"durationSeconds"`
}

// Playable is false only for the none provider.
func (r ResolvedSource) Playable() bool {
	return r.SourceProvider != ProviderNone && r.StreamURL != ""
}

// BatchItem is one recommendation candidate. Fields other than title and
// artist are kept so the response can echo them back untouched.
type BatchItem struct {
	Title  string
	Artist string
	Extra  map[string]json.RawMessage
}

func (b *BatchItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	extra := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		switch key {
		case "title":
			if err := json.Unmarshal(value, &b.Title); err != nil {
				return err
			}
		case "artist":
			if err := json.Unmarshal(value, &b.Artist); err != nil {
				return err
			}
		default:
			extra[key] = value
		}
	}
	b.Extra = extra
	return nil
}

func (b BatchItem) fields() map[string]any {
	out := make(map[string]any, len(b.Extra)+2)
	for key, value := range b.Extra {
		out[key] = value
	}
	out["title"] = b.Title
	out["artist"] = b.Artist
	return out
}

// BatchItemResult wraps one input item with its outcome. Source is only
// meaningful when Found is true.
type BatchItemResult struct {
	Item   BatchItem
	Found  bool
	Source ResolvedSource
}

func NotFound(item BatchItem) BatchItemResult {
	return BatchItemResult{
		Item:   item,
		Found:  false,
		Source: ResolvedSource{SourceProvider: ProviderNone},
	}
}

// MarshalJSON flattens the original item and the resolved fields into one
// object using the secondary catalog's field names.
func (r BatchItemResult) MarshalJSON() ([]byte, error) {
	out := r.Item.fields()
	out["found"] = r.Found
	if r.Found {
		out["id"] = r.Source.SecondaryID
		out["name"] = r.Source.Title
		out["artist_name"] = r.Source.ArtistName
		out["audio"] = r.Source.StreamURL
		out["image"] = r.Source.CoverImageURL
		out["duration"] = r.Source.DurationSeconds
	}
	return json.Marshal(out)
}
