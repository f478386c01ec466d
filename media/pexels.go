package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"shorts-factory/keys"
	"shorts-factory/retry"
)

const (
	pexelsBaseURL = "https://api.pexels.com/videos/search"
	downloadChunk = 8 * 1024
)

// MediaError is raised after the widening chain (original query → first
// token → "nature") is exhausted.
type MediaError struct {
	Query string
	Err   error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media: no usable clip for %q: %v", e.Query, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string { return fmt.Sprintf("http %d: %s", e.Status, e.Body) }

// Acquirer finds and downloads royalty-free portrait clips from Pexels.
type Acquirer struct {
	rotator *keys.Rotator
	policy  retry.Policy

	perPage     int
	minDuration int
	maxDuration int

	baseURL      string
	searchClient *http.Client
	fetchClient  *http.Client
	pick         func(n int) int
}

func NewAcquirer(rotator *keys.Rotator, policy retry.Policy, perPage, minDuration, maxDuration int) *Acquirer {
	policy.Classify = classify
	return &Acquirer{
		rotator:      rotator,
		policy:       policy,
		perPage:      perPage,
		minDuration:  minDuration,
		maxDuration:  maxDuration,
		baseURL:      pexelsBaseURL,
		searchClient: &http.Client{Timeout: 15 * time.Second},
		fetchClient:  &http.Client{Timeout: 30 * time.Second},
		pick:         rand.Intn,
	}
}

type searchResponse struct {
	Videos []videoItem `json:"videos"`
}

type videoItem struct {
	ID         int         `json:"id"`
	Duration   int         `json:"duration"`
	VideoFiles []videoFile `json:"video_files"`
}

type videoFile struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileType string `json:"file_type"`
	Link     string `json:"link"`
}

// Acquire downloads a best-fit background clip for query into outPath. The
// query is widened twice before giving up with *MediaError.
func (a *Acquirer) Acquire(ctx context.Context, query, outPath string) error {
	queries := widen(query)

	var lastErr error
	for _, q := range queries {
		clipURL, err := a.search(ctx, q)
		if err != nil {
			lastErr = err
			log.Printf("[media] search %q failed: %v", q, err)
			continue
		}
		if clipURL == "" {
			lastErr = fmt.Errorf("no results for %q", q)
			log.Printf("[media] no results for %q — widening", q)
			continue
		}

		if err := a.download(ctx, clipURL, outPath); err != nil {
			lastErr = err
			log.Printf("[media] download for %q failed: %v", q, err)
			continue
		}
		log.Printf("[media] clip saved to %s (query %q)", outPath, q)
		return nil
	}

	return &MediaError{Query: query, Err: lastErr}
}

// widen builds the three-step query chain: original, first token, "nature".
// Duplicates collapse so a one-word query is not retried verbatim.
func widen(query string) []string {
	candidates := []string{query}
	if fields := strings.Fields(query); len(fields) > 0 {
		candidates = append(candidates, fields[0])
	}
	candidates = append(candidates, "nature")

	seen := make(map[string]bool)
	var out []string
	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
	}
	return out
}

// search returns the download URL of the chosen encoding, or "" when the
// provider has no results.
func (a *Acquirer) search(ctx context.Context, query string) (string, error) {
	var clipURL string
	var cred *keys.Credential

	err := retry.Run(ctx, a.policy, func(ctx context.Context) error {
		k, err := a.rotator.Acquire("pexels")
		if err != nil {
			return err
		}
		cred = k

		items, err := a.call(ctx, k.Secret, query)
		if err != nil {
			return err
		}
		a.rotator.Report(k, keys.Ok)
		clipURL = a.choose(items)
		return nil
	}, func(err error) {
		var se *statusError
		outcome := keys.TransientOther
		if errors.As(err, &se) {
			switch se.Status {
			case http.StatusTooManyRequests:
				outcome = keys.RateLimited
			case http.StatusUnauthorized, http.StatusForbidden:
				outcome = keys.AuthFailed
			}
		}
		a.rotator.Report(cred, outcome)
	})
	if err != nil {
		return "", err
	}
	return clipURL, nil
}

func (a *Acquirer) call(ctx context.Context, apiKey, query string) ([]videoItem, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("orientation", "portrait")
	params.Set("per_page", fmt.Sprintf("%d", a.perPage))

	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := a.searchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse pexels response: %w", err)
	}
	return parsed.Videos, nil
}

// choose filters to clips near the target duration (relaxing to anything when
// none fit), picks one at random, and returns its largest MP4 encoding.
func (a *Acquirer) choose(items []videoItem) string {
	if len(items) == 0 {
		return ""
	}

	var fit []videoItem
	for _, v := range items {
		if v.Duration >= a.minDuration && v.Duration <= a.maxDuration {
			fit = append(fit, v)
		}
	}
	if len(fit) == 0 {
		fit = items
	}

	chosen := fit[a.pick(len(fit))]

	best := ""
	bestArea := 0
	for _, f := range chosen.VideoFiles {
		if !strings.Contains(f.FileType, "mp4") {
			continue
		}
		if area := f.Width * f.Height; area > bestArea {
			bestArea = area
			best = f.Link
		}
	}
	return best
}

// download streams the clip to outPath in 8 KiB chunks, checking for
// cancellation at every chunk boundary. The written size must reach the
// response's reported length.
func (a *Acquirer) download(ctx context.Context, clipURL, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", clipURL, nil)
	if err != nil {
		return err
	}

	resp, err := a.fetchClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{Status: resp.StatusCode, Body: "clip fetch"}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	buf := make([]byte, downloadChunk)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write clip: %w", err)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read clip: %w", readErr)
		}
	}

	if resp.ContentLength > 0 && written < resp.ContentLength {
		return fmt.Errorf("truncated download: %d of %d bytes", written, resp.ContentLength)
	}
	return nil
}

func classify(err error) retry.Class {
	if errors.Is(err, keys.ErrNoKeyAvailable) {
		return retry.Fatal
	}
	var se *statusError
	if !errors.As(err, &se) {
		return retry.Retryable
	}
	switch {
	case se.Status == http.StatusTooManyRequests,
		se.Status == http.StatusUnauthorized,
		se.Status == http.StatusForbidden:
		return retry.CredentialFault
	case se.Status >= 500:
		return retry.Retryable
	default:
		return retry.Fatal
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
