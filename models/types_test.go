package models

import (
	"encoding/json"
	"testing"
)

func TestCandidateUsable(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"complete", Candidate{SecondaryID: "1", RawAudioURL: "http://x/a"}, true},
		{"no id", Candidate{RawAudioURL: "http://x/a"}, false},
		{"no audio", Candidate{SecondaryID: "1"}, false},
		{"blank audio", Candidate{SecondaryID: "1", RawAudioURL: "   "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackRefSearchQuery(t *testing.T) {
	ref := TrackRef{Title: "Midnight City", ArtistName: "M83"}
	if got := ref.SearchQuery(); got != "Midnight City M83" {
		t.Errorf("SearchQuery() = %q, want %q", got, "Midnight City M83")
	}

	ref = TrackRef{Title: "Intro"}
	if got := ref.SearchQuery(); got != "Intro" {
		t.Errorf("SearchQuery() = %q, want %q", got, "Intro")
	}
}

func TestBatchItemKeepsExtraFields(t *testing.T) {
	var items []BatchItem
	body := `[{"title":"Song","artist":"Band","reason":"upbeat","rank":2}]`
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].Title != "Song" || items[0].Artist != "Band" {
		t.Errorf("item = %+v", items[0])
	}
	if string(items[0].Extra["reason"]) != `"upbeat"` {
		t.Errorf("reason = %s, want \"upbeat\"", items[0].Extra["reason"])
	}
}

func TestBatchItemRejectsNonObject(t *testing.T) {
	var item BatchItem
	if err := json.Unmarshal([]byte(`"just a string"`), &item); err == nil {
		t.Error("expected error for non-object item")
	}
}

func TestBatchItemResultMarshal(t *testing.T) {
	item := BatchItem{
		Title:  "Song",
		Artist: "Band",
		Extra:  map[string]json.RawMessage{"reason": json.RawMessage(`"upbeat"`)},
	}

	t.Run("not found", func(t *testing.T) {
		data, err := json.Marshal(NotFound(item))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got["found"] != false || got["title"] != "Song" || got["reason"] != "upbeat" {
			t.Errorf("got %v", got)
		}
		if _, ok := got["audio"]; ok {
			t.Error("not found result must not carry audio")
		}
	})

	t.Run("found", func(t *testing.T) {
		result := BatchItemResult{
			Item:  item,
			Found: true,
			Source: ResolvedSource{
				SourceProvider:  ProviderSecondary,
				StreamURL:       "http://x/a?format=mp32",
				SecondaryID:     "42",
				Title:           "Song (Remastered)",
				ArtistName:      "Band",
				DurationSeconds: 180,
			},
		}
		data, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got["found"] != true || got["id"] != "42" || got["audio"] != "http://x/a?format=mp32" {
			t.Errorf("got %v", got)
		}
		if got["title"] != "Song" {
			t.Errorf("title = %v, want original title", got["title"])
		}
		if got["name"] != "Song (Remastered)" {
			t.Errorf("name = %v", got["name"])
		}
		if got["duration"] != float64(180) {
			t.Errorf("duration = %v", got["duration"])
		}
	})
}

func TestResolvedSourcePlayable(t *testing.T) {
	if (ResolvedSource{SourceProvider: ProviderNone}).Playable() {
		t.Error("none provider must not be playable")
	}
	if !(ResolvedSource{SourceProvider: ProviderPrimary, StreamURL: "http://p"}).Playable() {
		t.Error("primary with url must be playable")
	}
}
