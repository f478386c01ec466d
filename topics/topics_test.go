package topics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSeedSource_ReturnsAtMostN(t *testing.T) {
	s := NewSeedSource([]string{"topic one long enough", "topic two long enough", "topic three"})

	got, err := s.Topics(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2", len(got))
	}
	for _, topic := range got {
		if topic.Source != "seed" {
			t.Fatalf("source = %q; want seed", topic.Source)
		}
	}
}

func TestSeedSource_SmallListReturnsAll(t *testing.T) {
	s := NewSeedSource([]string{"only topic"})
	got, err := s.Topics(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d; want 1", len(got))
	}
}

func TestHeadlinesToTopics_StripsPublisherAndDedupes(t *testing.T) {
	titles := []string{
		"Quantum chip breaks new record - TechDaily",
		"Quantum chip breaks new record - OtherOutlet",
		"short - X",
		"Robots are learning to walk on ice - Wired",
	}

	got := headlinesToTopics(titles, 10)
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2 (dedupe + length filter)", len(got))
	}
	if got[0].Text != "Quantum chip breaks new record" {
		t.Fatalf("text = %q; publisher suffix not stripped", got[0].Text)
	}
}

func TestFeedSource_UsesNewsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "key" {
			t.Errorf("apiKey not forwarded")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"articles": []map[string]string{
				{"title": "AI model writes symphonies - MusicTech"},
				{"title": "Chips get smaller again - FabNews"},
			},
		})
	}))
	defer srv.Close()

	f := NewFeedSource("technology", "key", NewSeedSource([]string{"fallback topic here"}))
	f.baseURL = srv.URL

	got, err := f.Topics(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2", len(got))
	}
	if got[0].Source != "feed" {
		t.Fatalf("source = %q; want feed", got[0].Source)
	}
}

func TestFeedSource_EmptyFeedFallsBackToSeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "articles": []any{}})
	}))
	defer srv.Close()

	f := NewFeedSource("technology", "key", NewSeedSource([]string{"seed topic long enough"}))
	f.baseURL = srv.URL
	f.rssURL = srv.URL + "?rss=%s" // also empty

	got, err := f.Topics(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source != "seed" {
		t.Fatalf("got = %+v; want one seed topic", got)
	}
}

func TestRedditSource_FailureFallsBackToSeed(t *testing.T) {
	r := NewRedditSource("technology", NewSeedSource([]string{"seed topic long enough"}))
	r.hotPosts = func(context.Context, string, int) ([]string, error) {
		return nil, errors.New("reddit down")
	}

	got, err := r.Topics(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source != "seed" {
		t.Fatalf("got = %+v; want seed fallback", got)
	}
}

func TestRedditSource_TitlesBecomeRedditTopics(t *testing.T) {
	r := NewRedditSource("technology", NewSeedSource(nil))
	r.hotPosts = func(context.Context, string, int) ([]string, error) {
		return []string{"A new battery lasts a decade"}, nil
	}

	got, err := r.Topics(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source != "reddit" {
		t.Fatalf("got = %+v; want one reddit topic", got)
	}
}
