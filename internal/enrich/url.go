package enrich

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	SubtypeYouTube = "youtube"
	SubtypeTwitter = "twitter"
	SubtypeWebpage = "webpage"
)

// bareURLMaxLen keeps pasted blobs that merely start with a URL out of the
// bare-URL path.
const bareURLMaxLen = 500

var (
	bareURLRegex   = regexp.MustCompile(`^https?://\S+$`)
	youtubeIDRegex = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/|/v/)([A-Za-z0-9_-]{11})`)
)

// IsBareURL reports whether text is nothing but a single http(s) URL.
func IsBareURL(text string) bool {
	return len(text) < bareURLMaxLen && bareURLRegex.MatchString(text)
}

// Classify puts a URL into exactly one of youtube, twitter or webpage by
// domain pattern.
func Classify(rawURL string) string {
	host := hostOf(rawURL)
	switch {
	case host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		return SubtypeYouTube
	case host == "twitter.com" || host == "x.com" || strings.HasSuffix(host, ".twitter.com") || strings.HasSuffix(host, ".x.com"):
		return SubtypeTwitter
	default:
		return SubtypeWebpage
	}
}

// ExtractYouTubeID pulls the 11-character video id out of any of the
// watch/short/embed/youtu.be URL forms.
func ExtractYouTubeID(rawURL string) string {
	if m := youtubeIDRegex.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
