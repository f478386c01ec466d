package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	newsAPIURL     = "https://newsapi.org/v2/everything"
	googleNewsRSS  = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"
	minTopicLength = 10
)

// FeedSource pulls trending headlines for a fixed query over the trailing
// day. NewsAPI is tried first, then the Google News RSS feed; when both fail
// or come back empty it falls back to the seed list.
type FeedSource struct {
	Query  string
	APIKey string
	Seed   *SeedSource

	baseURL    string
	rssURL     string
	httpClient *http.Client
	parser     *gofeed.Parser
}

func NewFeedSource(query, apiKey string, seed *SeedSource) *FeedSource {
	return &FeedSource{
		Query:      query,
		APIKey:     apiKey,
		Seed:       seed,
		baseURL:    newsAPIURL,
		rssURL:     googleNewsRSS,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		parser:     gofeed.NewParser(),
	}
}

func (f *FeedSource) Topics(ctx context.Context, n int) ([]Topic, error) {
	titles, err := f.fetchNewsAPI(ctx)
	if err != nil {
		log.Printf("[topics] NewsAPI fetch warning: %v", err)
	}

	if len(titles) == 0 {
		titles, err = f.fetchRSS(ctx)
		if err != nil {
			log.Printf("[topics] RSS fetch warning: %v", err)
		}
	}

	out := headlinesToTopics(titles, n)
	if len(out) == 0 {
		log.Printf("[topics] feeds empty for query %q — falling back to seed list", f.Query)
		return f.Seed.Topics(ctx, n)
	}
	log.Printf("[topics] feed supplied %d topic(s) for query %q", len(out), f.Query)
	return out, nil
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title string `json:"title"`
	} `json:"articles"`
}

func (f *FeedSource) fetchNewsAPI(ctx context.Context) ([]string, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("NEWS_API_KEY not set")
	}

	params := url.Values{}
	params.Set("q", f.Query)
	params.Set("from", time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02"))
	params.Set("sortBy", "popularity")
	params.Set("language", "en")
	params.Set("apiKey", f.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", f.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi status %d: %s", resp.StatusCode, string(body))
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse newsapi response: %w", err)
	}
	if parsed.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s", parsed.Message)
	}

	var titles []string
	for _, a := range parsed.Articles {
		titles = append(titles, a.Title)
	}
	return titles, nil
}

func (f *FeedSource) fetchRSS(ctx context.Context) ([]string, error) {
	feedURL := fmt.Sprintf(f.rssURL, url.QueryEscape(f.Query))
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse rss feed: %w", err)
	}

	var titles []string
	for _, item := range feed.Items {
		titles = append(titles, item.Title)
	}
	return titles, nil
}

// headlinesToTopics strips publisher suffixes, deduplicates, and keeps the
// first n usable titles.
func headlinesToTopics(titles []string, n int) []Topic {
	now := time.Now().UTC()
	seen := make(map[string]bool)
	var out []Topic

	for _, title := range titles {
		// Headlines arrive as "Story title - Publisher".
		text := title
		if idx := strings.Index(text, " - "); idx > 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)

		if len(text) < minTopicLength {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, Topic{Text: text, Source: "feed", FetchedAt: now})
		if len(out) == n {
			break
		}
	}
	return out
}
