package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"shorts-factory/retry"
)

// Request describes one video to publish.
type Request struct {
	VideoPath     string
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	Privacy       string
	MadeForKids   bool
	ThumbnailPath string
}

// UploadError is stage-fatal for the job.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// QuotaExhaustedError means the daily API quota is gone; remaining jobs in
// the batch are still attempted but will fail the same way.
type QuotaExhaustedError struct {
	Err error
}

func (e *QuotaExhaustedError) Error() string { return fmt.Sprintf("upload quota exhausted: %v", e.Err) }
func (e *QuotaExhaustedError) Unwrap() error { return e.Err }

// PermissionDeniedError means the channel credentials lack upload rights.
type PermissionDeniedError struct {
	Err error
}

func (e *PermissionDeniedError) Error() string { return fmt.Sprintf("upload permission denied: %v", e.Err) }
func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// Uploader publishes videos via the YouTube Data API v3 using a long-lived
// refresh token. The oauth2 transport exchanges it for a short-lived access
// token at first use and again on 401.
type Uploader struct {
	policy retry.Policy

	newService func(ctx context.Context) (*youtube.Service, error)
}

func New(clientID, clientSecret, refreshToken string, policy retry.Policy) *Uploader {
	policy.Classify = classifyUpload
	return &Uploader{
		policy: policy,
		newService: func(ctx context.Context) (*youtube.Service, error) {
			conf := &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
			}
			token := &oauth2.Token{
				RefreshToken: refreshToken,
				Expiry:       time.Now().Add(-time.Hour), // force refresh
			}
			client := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
			return youtube.NewService(ctx, option.WithHTTPClient(client))
		},
	}
}

// Upload performs a resumable chunked upload and returns the video URL. When
// the request carries a thumbnail, a separate thumbnail-set call follows; its
// failure is logged, never fatal.
func (u *Uploader) Upload(ctx context.Context, req Request) (string, error) {
	svc, err := u.newService(ctx)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("youtube service: %w", err)}
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        dedupeTags(req.Tags),
			CategoryId:  req.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           req.Privacy,
			SelfDeclaredMadeForKids: req.MadeForKids,
		},
	}

	var videoID string
	err = retry.Run(ctx, u.policy, func(ctx context.Context) error {
		f, err := os.Open(req.VideoPath)
		if err != nil {
			return fmt.Errorf("open video file: %w", err)
		}
		defer f.Close()

		fi, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat video file: %w", err)
		}
		log.Printf("[upload] uploading %q (%.1f MB)", req.Title, float64(fi.Size())/1024/1024)

		call := svc.Videos.Insert([]string{"snippet", "status"}, video)
		call.Media(f, googleapi.ChunkSize(8*1024*1024))
		call.ProgressUpdater(func(current, total int64) {
			log.Printf("[upload] %d/%d bytes", current, total)
		})

		uploaded, err := call.Context(ctx).Do()
		if err != nil {
			return err
		}
		videoID = uploaded.Id
		return nil
	}, nil)

	if err != nil {
		return "", wrapUploadErr(err)
	}

	if req.ThumbnailPath != "" {
		if err := u.setThumbnail(ctx, svc, videoID, req.ThumbnailPath); err != nil {
			log.Printf("[upload] thumbnail set failed: %v — keeping the upload", err)
		}
	}

	url := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	log.Printf("[upload] published %s", url)
	return url, nil
}

func (u *Uploader) setThumbnail(ctx context.Context, svc *youtube.Service, videoID, thumbnailPath string) error {
	f, err := os.Open(thumbnailPath)
	if err != nil {
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()

	call := svc.Thumbnails.Set(videoID)
	call.Media(f)
	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("thumbnails.set: %w", err)
	}
	log.Printf("[upload] thumbnail attached to %s", videoID)
	return nil
}

// classifyUpload: quota and permission 403s never retry; 5xx and transport
// errors do.
func classifyUpload(err error) retry.Class {
	if isQuotaExceeded(err) || isPermissionDenied(err) {
		return retry.Fatal
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code >= 500:
			return retry.Retryable
		case gerr.Code == http.StatusUnauthorized:
			// Token refresh happens inside the transport; one more pass.
			return retry.Retryable
		default:
			return retry.Fatal
		}
	}
	return retry.Retryable
}

func wrapUploadErr(err error) error {
	switch {
	case isQuotaExceeded(err):
		return &QuotaExhaustedError{Err: err}
	case isPermissionDenied(err):
		return &PermissionDeniedError{Err: err}
	default:
		return &UploadError{Err: err}
	}
}

func isQuotaExceeded(err error) bool {
	return is403WithReason(err, "quotaExceeded")
}

func isPermissionDenied(err error) bool {
	return is403WithReason(err, "permissionDenied") || is403WithReason(err, "forbidden")
}

func is403WithReason(err error, reason string) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == reason {
			return true
		}
	}
	return strings.Contains(gerr.Body, reason)
}

// dedupeTags preserves first-seen order.
func dedupeTags(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
