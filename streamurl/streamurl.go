// Package streamurl makes secondary catalog stream URLs carry the audio
// format parameter exactly once.
package streamurl

import "strings"

const (
	// FormatParam is the key the secondary catalog reads the encoding from.
	FormatParam = "format"
	// DefaultFormat is the 192 kbps mp3 stream.
	DefaultFormat = "mp32"
)

// HasFormat reports whether raw already carries a format parameter.
// "audioformat=" does not count.
func HasFormat(raw string) bool {
	return strings.Contains(raw, "?"+FormatParam+"=") || strings.Contains(raw, "&"+FormatParam+"=")
}

// Canonicalize appends format=mp32 unless a format parameter is already
// present. Callers must not pass an empty URL; an empty string comes back
// unchanged.
func Canonicalize(raw string) string {
	if raw == "" || HasFormat(raw) {
		return raw
	}

	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
		if strings.HasSuffix(raw, "?") || strings.HasSuffix(raw, "&") {
			sep = ""
		}
	}
	return raw + sep + FormatParam + "=" + DefaultFormat
}
