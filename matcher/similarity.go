package matcher

import (
	"github.com/adrg/strutil"
	strmetrics "github.com/adrg/strutil/metrics"

	"streamfinder/models"
)

const DefaultSimilarityThreshold = 0.85

// Similarity scores usable candidates with Jaro-Winkler over normalized
// "title artist" strings and takes the best one at or above threshold.
// Below threshold it behaves exactly like Normalized.
type Similarity struct {
	threshold float64
	metric    *strmetrics.JaroWinkler
}

func NewSimilarity(threshold float64) *Similarity {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Similarity{
		threshold: threshold,
		metric:    strmetrics.NewJaroWinkler(),
	}
}

func (s *Similarity) Select(track models.TrackRef, candidates []models.Candidate) (models.Candidate, bool) {
	if len(candidates) == 0 {
		return models.Candidate{}, false
	}

	query := NormalizeTitle(track.Title) + " " + fold(track.ArtistName)

	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		if !c.Usable() {
			continue
		}
		score := s.Score(query, NormalizeTitle(c.Name)+" "+fold(c.ArtistName))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx >= 0 && bestScore >= s.threshold {
		return candidates[bestIdx], true
	}
	return selectWith(track, candidates, NormalizeTitle)
}

func (s *Similarity) Score(a, b string) float64 {
	return strutil.Similarity(a, b, s.metric)
}
