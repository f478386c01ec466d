package compose

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func fakeComposer() (*Composer, *[][]string) {
	c := New(58, "/fonts/test.ttf")
	var calls [][]string
	c.run = func(_ context.Context, args ...string) error {
		calls = append(calls, args)
		return nil
	}
	c.duration = func(context.Context, string) (float64, error) { return 45.5, nil }
	return c, &calls
}

func TestCompose_ClampsToAudioDuration(t *testing.T) {
	c, calls := fakeComposer()
	out := t.TempDir()

	video, thumb := c.Compose(context.Background(), "bg.mp4", "audio.mp3", "A hook. More text.", "Title", out)
	if video != filepath.Join(out, "video.mp4") {
		t.Fatalf("video = %q", video)
	}
	if thumb != filepath.Join(out, "thumbnail.jpg") {
		t.Fatalf("thumb = %q", thumb)
	}

	render := strings.Join((*calls)[0], " ")
	if !strings.Contains(render, "-t 45.50") {
		t.Fatalf("render args missing audio clamp: %s", render)
	}
	if !strings.Contains(render, "yuv420p") || !strings.Contains(render, "libx264") {
		t.Fatalf("render args missing codec settings: %s", render)
	}
}

func TestCompose_NoAudioClampsTo58(t *testing.T) {
	c, calls := fakeComposer()

	c.Compose(context.Background(), "bg.mp4", "", "script", "Title", t.TempDir())

	render := strings.Join((*calls)[0], " ")
	if !strings.Contains(render, "-t 58.00") {
		t.Fatalf("render args missing 58s clamp: %s", render)
	}
	if !strings.Contains(render, "-an") {
		t.Fatalf("render args should drop audio track: %s", render)
	}
}

func TestCompose_FFmpegFailureDegradesToBackground(t *testing.T) {
	c := New(58, "/fonts/test.ttf")
	c.run = func(context.Context, ...string) error { return errors.New("exit status 1") }
	c.duration = func(context.Context, string) (float64, error) { return 40, nil }

	video, thumb := c.Compose(context.Background(), "bg.mp4", "audio.mp3", "script", "Title", t.TempDir())
	if video != "bg.mp4" {
		t.Fatalf("video = %q; want raw background path", video)
	}
	if thumb != "" {
		t.Fatalf("thumb = %q; want none", thumb)
	}
}

func TestCompose_ThumbnailFailureKeepsVideo(t *testing.T) {
	c := New(58, "/fonts/test.ttf")
	call := 0
	c.run = func(_ context.Context, args ...string) error {
		call++
		if call == 2 {
			return errors.New("thumbnail boom")
		}
		return nil
	}
	c.duration = func(context.Context, string) (float64, error) { return 40, nil }

	out := t.TempDir()
	video, thumb := c.Compose(context.Background(), "bg.mp4", "audio.mp3", "script", "Title", out)
	if video != filepath.Join(out, "video.mp4") {
		t.Fatalf("video = %q; want composed video", video)
	}
	if thumb != "" {
		t.Fatalf("thumb = %q; want none after failure", thumb)
	}
}

func TestCaptionText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Short hook. And then more.", "Short hook."},
		{strings.Repeat("x", 120), strings.Repeat("x", 87) + "..."},
		{"No terminator here", "No terminator here"},
	}
	for _, c := range cases {
		if got := captionText(c.in); got != c.want {
			t.Fatalf("captionText(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestEscapeDrawtext(t *testing.T) {
	got := escapeDrawtext("it's 50%: fine")
	if got != `it\'s 50\%\: fine` {
		t.Fatalf("escaped = %q", got)
	}
}
