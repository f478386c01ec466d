package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shorts-factory/keys"
	"shorts-factory/retry"
)

func testAcquirer(t *testing.T, handler http.Handler) (*Acquirer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rot := keys.NewRotator(100, time.Minute, 30*time.Minute)
	rot.Seed("pexels", []string{"px-key"})

	a := NewAcquirer(rot, retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, 15, 55, 65)
	a.baseURL = srv.URL + "/search"
	a.pick = func(int) int { return 0 }
	return a, srv
}

func searchPayload(srvURL string, durations ...int) searchResponse {
	var items []videoItem
	for i, d := range durations {
		items = append(items, videoItem{
			ID:       i,
			Duration: d,
			VideoFiles: []videoFile{
				{Width: 720, Height: 1280, FileType: "video/mp4", Link: srvURL + "/clip-small.mp4"},
				{Width: 1080, Height: 1920, FileType: "video/mp4", Link: srvURL + "/clip-big.mp4"},
				{Width: 3840, Height: 2160, FileType: "video/webm", Link: srvURL + "/clip.webm"},
			},
		})
	}
	return searchResponse{Videos: items}
}

func TestAcquire_PicksLargestMP4AndDownloads(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("orientation") != "portrait" {
			t.Errorf("orientation = %q", r.URL.Query().Get("orientation"))
		}
		json.NewEncoder(w).Encode(searchPayload(srvURL, 60))
	})
	mux.HandleFunc("/clip-big.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("BIGCLIPBYTES"))
	})
	mux.HandleFunc("/clip-small.mp4", func(w http.ResponseWriter, r *http.Request) {
		t.Error("downloaded the smaller encoding")
	})

	a, srv := testAcquirer(t, mux)
	srvURL = srv.URL

	out := filepath.Join(t.TempDir(), "background.mp4")
	if err := a.Acquire(context.Background(), "city night", out); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "BIGCLIPBYTES" {
		t.Fatalf("downloaded %q", data)
	}
}

func TestAcquire_RelaxesDurationFilterWhenNothingFits(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		// All clips outside [55, 65].
		json.NewEncoder(w).Encode(searchPayload(srvURL, 10, 120))
	})
	mux.HandleFunc("/clip-big.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("X"))
	})

	a, srv := testAcquirer(t, mux)
	srvURL = srv.URL

	if err := a.Acquire(context.Background(), "query", filepath.Join(t.TempDir(), "o.mp4")); err != nil {
		t.Fatal(err)
	}
}

func TestAcquire_WideningChainThenMediaError(t *testing.T) {
	var queries []string
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("query"))
		json.NewEncoder(w).Encode(searchResponse{})
	})

	a, _ := testAcquirer(t, mux)

	err := a.Acquire(context.Background(), "solar panels breakthrough", filepath.Join(t.TempDir(), "o.mp4"))
	var mediaErr *MediaError
	if !errors.As(err, &mediaErr) {
		t.Fatalf("err = %v; want *MediaError", err)
	}

	want := []string{"solar panels breakthrough", "solar", "nature"}
	if fmt.Sprint(queries) != fmt.Sprint(want) {
		t.Fatalf("queries = %v; want %v", queries, want)
	}
}

func TestAcquire_TruncatedDownloadFails(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchPayload(srvURL, 60))
	})
	mux.HandleFunc("/clip-big.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	})

	a, srv := testAcquirer(t, mux)
	srvURL = srv.URL

	err := a.Acquire(context.Background(), "nature", filepath.Join(t.TempDir(), "o.mp4"))
	if err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestWiden(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"solar panels breakthrough", []string{"solar panels breakthrough", "solar", "nature"}},
		{"ocean", []string{"ocean", "nature"}},
		{"nature", []string{"nature"}},
	}
	for _, c := range cases {
		got := widen(c.in)
		if fmt.Sprint(got) != fmt.Sprint(c.want) {
			t.Fatalf("widen(%q) = %v; want %v", c.in, got, c.want)
		}
	}
}
