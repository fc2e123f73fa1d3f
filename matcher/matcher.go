package matcher

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"streamfinder/config"
	"streamfinder/models"
)

// Selector picks the best candidate for a track out of one search page.
// Implementations must never return a candidate that is not Usable.
type Selector interface {
	Select(track models.TrackRef, candidates []models.Candidate) (models.Candidate, bool)
}

// New returns the selector for a strategy name, falling back to containment
// for anything it does not know.
func New(strategy string) Selector {
	switch strategy {
	case config.MatchNormalized:
		return NewNormalized()
	case config.MatchSimilarity:
		return NewSimilarity(DefaultSimilarityThreshold)
	case config.MatchContainment:
		return Containment{}
	default:
		log.WithFields(log.Fields{"module": "matcher", "function": "New"}).
			Warnf("unknown match strategy %q, using containment", strategy)
		return Containment{}
	}
}

// FromConfig builds the selector named by MATCH_STRATEGY.
func FromConfig() Selector {
	return New(config.Config.Options.MatchStrategy)
}

// Containment prefers the first usable candidate whose name and the track
// title contain one another, or whose artist contains the track's artist,
// compared case-insensitively. Without such a candidate it takes the first
// one, provided that one is usable.
type Containment struct{}

func (Containment) Select(track models.TrackRef, candidates []models.Candidate) (models.Candidate, bool) {
	return selectWith(track, candidates, strings.ToLower)
}

// selectWith runs the containment rules after passing every string through
// fold. The fold decides what "same text" means.
func selectWith(track models.TrackRef, candidates []models.Candidate, fold func(string) string) (models.Candidate, bool) {
	if len(candidates) == 0 {
		return models.Candidate{}, false
	}

	title := fold(track.Title)
	artist := fold(track.ArtistName)

	for _, c := range candidates {
		if !c.Usable() {
			continue
		}
		name := fold(c.Name)
		if contains(name, title) || contains(title, name) || contains(fold(c.ArtistName), artist) {
			return c, true
		}
	}

	if candidates[0].Usable() {
		return candidates[0], true
	}
	return models.Candidate{}, false
}

// contains is strings.Contains except that an empty needle never matches.
func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
