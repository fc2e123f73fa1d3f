package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"streamfinder/models"
)

var (
	featPattern    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]`)
	versionPattern = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*(?:remaster(?:ed)?|radio edit|deluxe|extended|live)[^\)\]]*[\)\]]`)
	dashSuffix     = regexp.MustCompile(`(?i)\s+-\s+(?:\d{4}\s+)?(?:remaster(?:ed)?|radio edit|single version|live).*$`)
	punctPattern   = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Normalized applies the containment rules to folded text: accents are
// stripped, punctuation collapsed, and featuring or remaster decorations
// removed from titles. "Beyoncé" then contains "beyonce", and
// "Song (feat. X) - 2011 Remaster" compares equal to "Song".
type Normalized struct{}

func NewNormalized() Normalized {
	return Normalized{}
}

func (Normalized) Select(track models.TrackRef, candidates []models.Candidate) (models.Candidate, bool) {
	return selectWith(track, candidates, NormalizeTitle)
}

// NormalizeTitle folds a title for comparison. It is also safe on artist
// names since the decoration patterns need brackets or a dash suffix.
func NormalizeTitle(s string) string {
	s = featPattern.ReplaceAllString(s, "")
	s = versionPattern.ReplaceAllString(s, "")
	s = dashSuffix.ReplaceAllString(s, "")
	return fold(s)
}

func fold(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}

	s = punctPattern.ReplaceAllString(b.String(), " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}
