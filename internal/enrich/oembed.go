package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	youtubeOEmbedEndpoint = "https://www.youtube.com/oembed"
	twitterOEmbedEndpoint = "https://publish.twitter.com/oembed"
)

// OEmbedData is the subset of an oEmbed response the pipeline cares about.
type OEmbedData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	HTML         string `json:"html"`
}

type oembedClient struct {
	client    *http.Client
	userAgent string
}

// FetchOEmbed asks the provider's oEmbed endpoint about targetURL. Any
// non-200 or malformed response is treated as "no data" by the caller; the
// error is never fatal for capture.
func (c *oembedClient) FetchOEmbed(ctx context.Context, endpoint, targetURL string) (*OEmbedData, error) {
	u := endpoint + "?format=json&url=" + url.QueryEscape(targetURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed status %d for %s", resp.StatusCode, endpoint)
	}
	var data OEmbedData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// TweetText pulls the plain tweet text out of the oEmbed html snippet.
func TweetText(oembedHTML string) string {
	m := paragraphRegex.FindStringSubmatch(oembedHTML)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(stripTags(m[1]))
}
