package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/tools/duckduckgo"
	"jaytaylor.com/html2text"
	"mvdan.cc/xurls/v2"
)

const (
	fetchTimeout     = 15 * time.Second
	maxFetchedText   = 12000
	maxSearchResults = 10
	maxSearchOutput  = 8000
	maxWebFetchText  = 6000
	userAgent        = "Anemone/1.0 (research)"
)

var webClient = &http.Client{Timeout: fetchTimeout}

// FetchURL retrieves a page and returns its text content. All failures
// come back as plain strings the model can read.
func FetchURL(ctx context.Context, url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "Error: Only http and https URLs are allowed."
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %s", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := webClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %s", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %s", err)
	}

	text, err := html2text.FromString(string(body), html2text.Options{TextOnly: true})
	if err != nil || strings.TrimSpace(text) == "" {
		text = string(body)
	}
	if len(text) > maxFetchedText {
		text = text[:maxFetchedText] + "...(truncated)"
	}
	return text
}

// WebSearch runs a DuckDuckGo search and returns result text with the
// redirect wrappers stripped from any URLs.
func WebSearch(ctx context.Context, query string, maxResults int) string {
	if maxResults <= 0 {
		maxResults = 5
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	ddg, err := duckduckgo.New(maxResults, userAgent)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	res, err := ddg.Call(ctx, query)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	var lines []string
	if res != "" {
		lines = append(lines, res, "")
	}
	for _, u := range xurls.Strict().FindAllString(res, -1) {
		u = strings.ReplaceAll(u, "//duckduckgo.com/l/?uddg=", "")
		u, _, _ = strings.Cut(u, "&rut=")
		lines = append(lines, "URL: "+u)
	}

	result := strings.Join(lines, "\n")
	if len(result) > maxSearchOutput {
		result = result[:maxSearchOutput]
	}
	if strings.TrimSpace(result) == "" {
		return "No results found."
	}
	return result
}

// WebFetch retrieves a search result page, trimmed tighter than
// FetchURL so several fetches fit in one context.
func WebFetch(ctx context.Context, url string) string {
	text := FetchURL(ctx, url)
	if len(text) > maxWebFetchText {
		text = text[:maxWebFetchText] + "...(truncated)"
	}
	return text
}
