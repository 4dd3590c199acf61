package enrich

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/filestore"
	"github.com/xxxsen/recall/internal/model"
)

// youtubeEmbedTextCap bounds the combined title+description+transcript text
// that gets embedded for a video.
const youtubeEmbedTextCap = 10000

// Result is what one enrichment pass produced. Context is merged into the
// record (shallow, incoming wins); EmbedText replaces the embedding input.
type Result struct {
	Subtype   string
	Context   model.Context
	EmbedText string
}

type Enricher struct {
	oembed     *oembedClient
	webpage    *webpageClient
	transcript TranscriptClient
	archive    filestore.Store
}

type Options struct {
	TranscriptBaseURL string
	Timeout           time.Duration
	UserAgent         string
	// Archive, when non-nil, receives raw fetched artifacts (transcripts,
	// page snapshots) best-effort.
	Archive filestore.Store
}

func New(opts Options) *Enricher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: opts.Timeout}
	return &Enricher{
		oembed:     &oembedClient{client: client, userAgent: opts.UserAgent},
		webpage:    &webpageClient{client: client, userAgent: opts.UserAgent},
		transcript: NewTranscriptClient(opts.TranscriptBaseURL, client, opts.UserAgent),
		archive:    opts.Archive,
	}
}

// Enrich fetches external metadata for a bare URL. It returns an error only
// when nothing useful could be fetched; callers treat that as a soft failure
// and keep the raw URL.
func (e *Enricher) Enrich(ctx context.Context, rawURL string) (*Result, error) {
	subtype := Classify(rawURL)
	switch subtype {
	case SubtypeYouTube:
		return e.enrichYouTube(ctx, rawURL)
	case SubtypeTwitter:
		return e.enrichTwitter(ctx, rawURL)
	default:
		return e.enrichWebPage(ctx, rawURL)
	}
}

func (e *Enricher) enrichYouTube(ctx context.Context, rawURL string) (*Result, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("url", rawURL))
	videoID := ExtractYouTubeID(rawURL)
	if videoID == "" {
		return nil, fmt.Errorf("no video id in %s", rawURL)
	}

	oe, oembedErr := e.oembed.FetchOEmbed(ctx, youtubeOEmbedEndpoint, rawURL)
	if oembedErr != nil {
		logger.Warn("youtube oembed fetch failed", zap.Error(oembedErr))
		oe = &OEmbedData{}
	}

	var transcriptText, transcriptLang string
	if e.transcript != nil {
		transcript, err := e.transcript.FetchTranscript(ctx, videoID, "")
		if err != nil {
			logger.Warn("transcript fetch failed", zap.String("video_id", videoID), zap.Error(err))
		} else {
			transcriptText = transcript.Text
			transcriptLang = transcript.Language
			e.archiveArtifact(ctx, "transcripts/"+videoID+".txt", []byte(transcript.Text))
		}
	}

	if oembedErr != nil && transcriptText == "" {
		return nil, fmt.Errorf("youtube enrichment got no data: %w", oembedErr)
	}

	contextBag := model.Context{
		"source_url": rawURL,
		"video_id":   videoID,
	}
	if oe.Title != "" {
		contextBag["title"] = oe.Title
	}
	if oe.AuthorName != "" {
		contextBag["author"] = oe.AuthorName
	}
	if oe.ThumbnailURL != "" {
		contextBag["thumbnail"] = oe.ThumbnailURL
	}
	if transcriptText != "" {
		contextBag["has_transcript"] = true
		if transcriptLang != "" {
			contextBag["transcript_language"] = transcriptLang
		}
	}

	body := transcriptText
	if body == "" {
		body = rawURL
	}
	embedText := joinNonEmpty("\n", oe.Title, oe.AuthorName, body)
	if len(embedText) > youtubeEmbedTextCap {
		embedText = embedText[:youtubeEmbedTextCap]
	}
	return &Result{Subtype: SubtypeYouTube, Context: contextBag, EmbedText: embedText}, nil
}

func (e *Enricher) enrichTwitter(ctx context.Context, rawURL string) (*Result, error) {
	oe, err := e.oembed.FetchOEmbed(ctx, twitterOEmbedEndpoint, rawURL)
	if err != nil {
		return nil, fmt.Errorf("twitter oembed fetch failed: %w", err)
	}
	text := TweetText(oe.HTML)
	contextBag := model.Context{
		"source_url": rawURL,
	}
	if oe.AuthorName != "" {
		contextBag["author"] = oe.AuthorName
	}
	if text != "" {
		contextBag["tweet_text"] = text
	}
	embedText := joinNonEmpty("\n", oe.AuthorName, text)
	if embedText == "" {
		return nil, fmt.Errorf("twitter oembed had no text for %s", rawURL)
	}
	return &Result{Subtype: SubtypeTwitter, Context: contextBag, EmbedText: embedText}, nil
}

func (e *Enricher) enrichWebPage(ctx context.Context, rawURL string) (*Result, error) {
	page, err := e.webpage.FetchWebPage(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("webpage fetch failed: %w", err)
	}
	e.archiveArtifact(ctx, "pages/"+hashKey(rawURL)+".html", []byte(page.RawHTML))

	title := firstNonEmpty(page.OGTitle, page.Title)
	desc := firstNonEmpty(page.OGDesc, page.Description)
	contextBag := model.Context{
		"source_url": rawURL,
	}
	if title != "" {
		contextBag["title"] = title
	}
	if desc != "" {
		contextBag["description"] = desc
	}
	if page.OGImage != "" {
		contextBag["thumbnail"] = page.OGImage
	}
	embedText := joinNonEmpty("\n", title, desc, page.Content)
	if embedText == "" {
		return nil, fmt.Errorf("webpage had no extractable text for %s", rawURL)
	}
	return &Result{Subtype: SubtypeWebpage, Context: contextBag, EmbedText: embedText}, nil
}

func (e *Enricher) archiveArtifact(ctx context.Context, key string, data []byte) {
	if e.archive == nil || len(data) == 0 {
		return
	}
	reader := nopReadSeekCloser{bytes.NewReader(data)}
	if err := e.archive.Save(ctx, key, reader, int64(len(data))); err != nil {
		logutil.GetLogger(ctx).Warn("artifact archive failed", zap.String("key", key), zap.Error(err))
	}
}

type nopReadSeekCloser struct {
	*bytes.Reader
}

func (nopReadSeekCloser) Close() error { return nil }

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
