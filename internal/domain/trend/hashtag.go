package trend

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	nonWordRun    = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Hashtag derives a hashtag from a title. It returns "" when nothing usable remains.
func Hashtag(title string) string {
	s := norm.NFC.String(title)
	s = strings.ReplaceAll(s, "'", "")
	s = nonWordRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	if s == "" {
		return ""
	}
	return "#" + strings.ToLower(s)
}

// Hashtags maps titles to hashtags, dropping blank titles and empty hashtags.
func Hashtags(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if tag := Hashtag(t); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
