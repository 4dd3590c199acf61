package enrich

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// webpageContentCap bounds the main-content extract merged into the record.
const webpageContentCap = 8000

// maxFetchBytes bounds how much of a page body is read.
const maxFetchBytes = 2 << 20

var (
	titleRegex     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescRegex  = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]*content=["']([^"']*)["']`)
	ogTitleRegex   = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:title["'][^>]*content=["']([^"']*)["']`)
	ogDescRegex    = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:description["'][^>]*content=["']([^"']*)["']`)
	ogImageRegex   = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:image["'][^>]*content=["']([^"']*)["']`)
	articleRegex   = regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`)
	mainRegex      = regexp.MustCompile(`(?is)<main[^>]*>(.*?)</main>`)
	scriptRegex    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRegex       = regexp.MustCompile(`<[^>]+>`)
	paragraphRegex = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
)

// WebPageData is what a generic HTML scrape yields.
type WebPageData struct {
	Title       string
	Description string
	OGTitle     string
	OGDesc      string
	OGImage     string
	Content     string
	RawHTML     string
}

type webpageClient struct {
	client    *http.Client
	userAgent string
}

// FetchWebPage gets the page and extracts title, meta/OG fields and a
// best-effort main-content text. Pattern extraction only, no DOM parser.
func (c *webpageClient) FetchWebPage(ctx context.Context, pageURL string) (*WebPageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webpage status %d for %s", resp.StatusCode, pageURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}
	page := string(body)
	data := &WebPageData{
		Title:       firstGroup(titleRegex, page),
		Description: firstGroup(metaDescRegex, page),
		OGTitle:     firstGroup(ogTitleRegex, page),
		OGDesc:      firstGroup(ogDescRegex, page),
		OGImage:     firstGroup(ogImageRegex, page),
		Content:     extractMainContent(page),
		RawHTML:     page,
	}
	return data, nil
}

// extractMainContent prefers <article>, then <main>, then nothing: partial
// data beats guessing at the whole body.
func extractMainContent(page string) string {
	var block string
	if m := articleRegex.FindStringSubmatch(page); m != nil {
		block = m[1]
	} else if m := mainRegex.FindStringSubmatch(page); m != nil {
		block = m[1]
	}
	if block == "" {
		return ""
	}
	text := stripTags(block)
	if len(text) > webpageContentCap {
		text = text[:webpageContentCap]
	}
	return text
}

func firstGroup(re *regexp.Regexp, page string) string {
	if m := re.FindStringSubmatch(page); m != nil {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

func stripTags(block string) string {
	block = scriptRegex.ReplaceAllString(block, " ")
	block = styleRegex.ReplaceAllString(block, " ")
	block = tagRegex.ReplaceAllString(block, " ")
	block = html.UnescapeString(block)
	return strings.Join(strings.Fields(block), " ")
}
