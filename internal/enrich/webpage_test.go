package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Sample Page Title</title>
<meta name="description" content="A short description.">
<meta property="og:title" content="OG Sample Title">
<meta property="og:description" content="OG description text.">
<meta property="og:image" content="https://example.com/img.png">
</head>
<body>
<nav>ignore this navigation</nav>
<article>
<h1>Heading</h1>
<p>First paragraph of the article body.</p>
<script>console.log("should be stripped")</script>
<style>.x { color: red }</style>
<p>Second &amp; final paragraph.</p>
</article>
<footer>ignore footer</footer>
</body>
</html>`

func newTestWebpageClient() *webpageClient {
	return &webpageClient{
		client:    &http.Client{Timeout: 5 * time.Second},
		userAgent: "test-agent/1.0",
	}
}

func TestFetchWebPageExtractsFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	page, err := newTestWebpageClient().FetchWebPage(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, "Sample Page Title", page.Title)
	require.Equal(t, "A short description.", page.Description)
	require.Equal(t, "OG Sample Title", page.OGTitle)
	require.Equal(t, "OG description text.", page.OGDesc)
	require.Equal(t, "https://example.com/img.png", page.OGImage)
	require.Contains(t, page.Content, "First paragraph of the article body.")
	require.Contains(t, page.Content, "Second & final paragraph.")
	require.NotContains(t, page.Content, "should be stripped")
	require.NotContains(t, page.Content, "color: red")
	require.NotContains(t, page.Content, "ignore this navigation")
}

func TestFetchWebPageFallsBackToMain(t *testing.T) {
	body := `<html><head><title>T</title></head><body><main><p>main content here</p></main></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	page, err := newTestWebpageClient().FetchWebPage(context.Background(), server.URL)
	require.NoError(t, err)
	require.Contains(t, page.Content, "main content here")
}

func TestFetchWebPageNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestWebpageClient().FetchWebPage(context.Background(), server.URL)
	require.Error(t, err)
}

func TestFetchOEmbedParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "json", r.URL.Query().Get("format"))
		require.Equal(t, "https://youtu.be/dQw4w9WgXcQ", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"A Video","author_name":"Channel","thumbnail_url":"https://img/x.jpg","html":"<iframe></iframe>"}`))
	}))
	defer server.Close()

	client := &oembedClient{client: &http.Client{Timeout: 5 * time.Second}, userAgent: "test-agent/1.0"}
	data, err := client.FetchOEmbed(context.Background(), server.URL, "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "A Video", data.Title)
	require.Equal(t, "Channel", data.AuthorName)
	require.Equal(t, "https://img/x.jpg", data.ThumbnailURL)
}

func TestFetchOEmbedNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := &oembedClient{client: &http.Client{Timeout: 5 * time.Second}}
	_, err := client.FetchOEmbed(context.Background(), server.URL, "https://twitter.com/u/status/1")
	require.Error(t, err)
}
