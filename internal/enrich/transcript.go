package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TranscriptSegment is one timed piece of a video transcript.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// Transcript is the transcript service's answer for one video.
type Transcript struct {
	Success  bool                `json:"success"`
	Text     string              `json:"text"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

// TranscriptClient fetches a transcript for a video id. It is optional:
// a nil client (or any error) degrades to title/metadata-only enrichment.
type TranscriptClient interface {
	FetchTranscript(ctx context.Context, videoID, lang string) (*Transcript, error)
}

type httpTranscriptClient struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// NewTranscriptClient speaks to an external transcript service. An empty
// baseURL returns nil, meaning no transcript capability.
func NewTranscriptClient(baseURL string, client *http.Client, userAgent string) TranscriptClient {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &httpTranscriptClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		userAgent: userAgent,
	}
}

func (c *httpTranscriptClient) FetchTranscript(ctx context.Context, videoID, lang string) (*Transcript, error) {
	u := fmt.Sprintf("%s/transcript?video_id=%s", c.baseURL, url.QueryEscape(videoID))
	if lang != "" {
		u += "&lang=" + url.QueryEscape(lang)
	}
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
		return nil, fmt.Errorf("transcript status %d for %s", resp.StatusCode, videoID)
	}
	var transcript Transcript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return nil, err
	}
	if !transcript.Success {
		return nil, fmt.Errorf("transcript not available for %s", videoID)
	}
	return &transcript, nil
}
